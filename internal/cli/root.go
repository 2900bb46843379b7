package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/dukasfetch/cache"
	"github.com/rustyeddy/dukasfetch/config"
	"github.com/rustyeddy/dukasfetch/dukascopy"
	"github.com/rustyeddy/dukasfetch/internal/id"
	"github.com/rustyeddy/dukasfetch/market"
)

const version = "1.0.0"

// RatesFetcher retrieves historical rates for one request.
type RatesFetcher interface {
	GetHistoricalRates(ctx context.Context, req dukascopy.Request) (any, error)
}

type deps struct {
	stdout     io.Writer
	stderr     io.Writer
	lookupEnv  func(string) (string, bool)
	newFetcher func(dukascopy.Options) RatesFetcher
}

func newDukascopy(opts dukascopy.Options) RatesFetcher {
	return dukascopy.NewClient(opts)
}

type rootFlags struct {
	timeframe  string
	format     string
	priceType  string
	volumes    bool
	outPath    string
	configPath string
	cachePath  string
	logLevel   string
	tz         string
}

// Run executes the CLI with args (without the program name) and returns the
// process exit code. Any failure is reported as a single "error ..." line
// on stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return run(ctx, args, deps{
		stdout:     stdout,
		stderr:     stderr,
		lookupEnv:  os.LookupEnv,
		newFetcher: newDukascopy,
	})
}

func run(ctx context.Context, args []string, d deps) int {
	cmd := newRootCmd(d)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(d.stderr, "error", err)
		return 1
	}
	return 0
}

func newRootCmd(d deps) *cobra.Command {
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "dukasfetch <instrument> <from-date> <to-date>",
		Short: "Fetch historical Dukascopy ticks and print them as JSON",
		Long:          longHelp(),
		Args:          cobra.ExactArgs(3),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetch(cmd, args, f, d)
		},
	}
	cmd.SetOut(d.stdout)
	cmd.SetErr(d.stderr)

	cmd.Flags().StringVar(&f.timeframe, "timeframe", string(market.Ticks), "Timeframe: tick|m1|m5|m15|m30|h1|h4|d1")
	cmd.Flags().StringVar(&f.format, "format", string(dukascopy.FormatJSON), "Result format: json|array|csv")
	cmd.Flags().StringVar(&f.priceType, "price-type", string(market.BidSide), "Candle price side: bid|ask|mid")
	cmd.Flags().BoolVar(&f.volumes, "volumes", true, "Include volumes")
	cmd.Flags().StringVar(&f.outPath, "out", "", "Write the result to a file instead of stdout")
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to config file (YAML or JSON, optional)")
	cmd.Flags().StringVar(&f.cachePath, "cache", "", "SQLite hour cache (or env DUKAS_CACHE_PATH); empty disables caching")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug|info|warn|error (default warn)")
	cmd.Flags().StringVar(&f.tz, "tz", "UTC", "IANA zone for dates without an offset and for candle buckets")

	return cmd
}

func longHelp() string {
	return fmt.Sprintf(`dukasfetch downloads historical rates for one instrument from the
Dukascopy datafeed and prints them to stdout as a single JSON document.

Dates accept YYYY-MM-DD, YYYY-MM-DDTHH:MM[:SS] or RFC 3339. Dates without an
offset are read in --tz (UTC by default), which also aligns candle buckets.
The range is half-open: ticks at <to-date> are not included.

Instruments:
%s

Examples:
  dukasfetch EURUSD 2023-01-01 2023-01-02
  dukasfetch usdjpy 2023-03-01T08:00 2023-03-01T12:00 --timeframe m5
  dukasfetch EURUSD 2023-01-02 2023-01-03 --timeframe d1 --tz America/New_York
  dukasfetch EURUSD 2023-01-02 2023-01-03 --format csv --out eurusd.csv`, instrumentList(8))
}

// instrumentList lays out the supported symbols perLine to a row.
func instrumentList(perLine int) string {
	names := market.InstrumentNames()
	var lines []string
	for start := 0; start < len(names); start += perLine {
		end := min(start+perLine, len(names))
		lines = append(lines, "  "+strings.Join(names[start:end], " "))
	}
	return strings.Join(lines, "\n")
}

func loadConfig(f *rootFlags, d deps) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(f.configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(d.lookupEnv); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if f.cachePath != "" {
		cfg.Cache.Path = f.cachePath
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	return l, nil
}

func fetch(cmd *cobra.Command, args []string, f *rootFlags, d deps) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(f, d)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, d.stderr)
	if err != nil {
		return err
	}
	runID := id.New()
	log := logger.WithField("run", runID)

	req, err := buildRequest(args, f)
	if err != nil {
		return err
	}

	timing, err := cfg.Datafeed.Timing()
	if err != nil {
		return err
	}
	opts := dukascopy.Options{
		BaseURL:             cfg.Datafeed.BaseURL,
		BatchSize:           cfg.Datafeed.BatchSize,
		PauseBetweenBatches: timing.PauseBetweenBatches,
		RetryCount:          cfg.Datafeed.RetryCount,
		PauseBetweenRetries: timing.PauseBetweenRetries,
		HTTPClient:          &http.Client{Timeout: timing.Timeout},
		EmptyHourSettle:     timing.EmptyHourSettle,
		Logger:              log,
		UserAgent:           "dukasfetch/" + version,
	}

	var hours *cache.SQLiteCache
	if cfg.Cache.Path != "" {
		if hours, err = cache.Open(cfg.Cache.Path); err != nil {
			return err
		}
		defer hours.Close()
		opts.Cache = hours
	}

	result, err := d.newFetcher(opts).GetHistoricalRates(ctx, req)

	if hours != nil {
		rec := cache.FetchRecord{
			RunID:      runID,
			Instrument: req.Instrument,
			From:       req.From,
			To:         req.To,
			Timeframe:  string(req.Timeframe),
			Format:     string(req.Format),
			Err:        err,
		}
		if rerr := hours.RecordFetch(ctx, rec); rerr != nil {
			log.WithError(rerr).Info("record fetch failed")
		}
	}
	if err != nil {
		return err
	}

	out, err := encodeResult(result)
	if err != nil {
		return err
	}
	return writeResult(out, f.outPath, d.stdout)
}

func buildRequest(args []string, f *rootFlags) (dukascopy.Request, error) {
	loc, err := time.LoadLocation(f.tz)
	if err != nil {
		return dukascopy.Request{}, fmt.Errorf("time zone %q: %w", f.tz, err)
	}
	from, err := ParseDate(args[1], loc)
	if err != nil {
		return dukascopy.Request{}, fmt.Errorf("parse from date: %w", err)
	}
	to, err := ParseDate(args[2], loc)
	if err != nil {
		return dukascopy.Request{}, fmt.Errorf("parse to date: %w", err)
	}
	tf, err := market.ParseTimeframe(f.timeframe)
	if err != nil {
		return dukascopy.Request{}, err
	}
	format, err := dukascopy.ParseFormat(f.format)
	if err != nil {
		return dukascopy.Request{}, err
	}
	side, err := market.ParseSide(f.priceType)
	if err != nil {
		return dukascopy.Request{}, err
	}

	return dukascopy.Request{
		Instrument: args[0],
		From:       from,
		To:         to,
		Timeframe:  tf,
		Format:     format,
		PriceType:  side,
		Volumes:    f.volumes,
		Location:   loc,
	}, nil
}

// encodeResult renders the whole result before anything is written, so a
// failure never leaves partial output behind. CSV text is passed through
// as-is; everything else is JSON followed by a newline.
func encodeResult(result any) ([]byte, error) {
	if s, ok := result.(string); ok {
		return []byte(s), nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return buf.Bytes(), nil
}

func writeResult(out []byte, path string, stdout io.Writer) error {
	if path == "" {
		_, err := stdout.Write(out)
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
