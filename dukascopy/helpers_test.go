package dukascopy

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz/lzma"
)

// rawTick mirrors one 20 byte record of an hour file.
type rawTick struct {
	MS     uint32
	Ask    uint32
	Bid    uint32
	AskVol float32
	BidVol float32
}

func records(t *testing.T, ticks ...rawTick) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, tk := range ticks {
		require.NoError(t, binary.Write(&buf, binary.BigEndian, tk))
	}
	return buf.Bytes()
}

func encodeHour(t *testing.T, ticks ...rawTick) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(records(t, ticks...))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// datafeed is a fake Dukascopy server. Paths not in files return 404.
type datafeed struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	status   map[string][]int // per path status sequence, consumed in order
	requests map[string]int
	arrivals []time.Time

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func newDatafeed(t *testing.T) *datafeed {
	t.Helper()
	df := &datafeed{
		files:    make(map[string][]byte),
		status:   make(map[string][]int),
		requests: make(map[string]int),
	}
	df.Server = httptest.NewServer(http.HandlerFunc(df.serve))
	t.Cleanup(df.Close)
	return df
}

func (df *datafeed) serve(w http.ResponseWriter, r *http.Request) {
	df.mu.Lock()
	df.arrivals = append(df.arrivals, time.Now())
	df.mu.Unlock()

	n := df.inFlight.Add(1)
	defer df.inFlight.Add(-1)
	for {
		cur := df.maxInFlight.Load()
		if n <= cur || df.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if df.delay > 0 {
		time.Sleep(df.delay)
	}

	df.mu.Lock()
	df.requests[r.URL.Path]++
	var code int
	if seq := df.status[r.URL.Path]; len(seq) > 0 {
		code = seq[0]
		df.status[r.URL.Path] = seq[1:]
	}
	body, ok := df.files[r.URL.Path]
	df.mu.Unlock()

	if code != 0 && code != http.StatusOK {
		w.WriteHeader(code)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (df *datafeed) base() string {
	return df.URL + "/datafeed"
}

func (df *datafeed) path(symbol string, hour time.Time) string {
	return HourURL("/datafeed", symbol, hour)
}

func (df *datafeed) put(symbol string, hour time.Time, body []byte) {
	df.mu.Lock()
	defer df.mu.Unlock()
	df.files[df.path(symbol, hour)] = body
}

func (df *datafeed) failWith(symbol string, hour time.Time, codes ...int) {
	df.mu.Lock()
	defer df.mu.Unlock()
	df.status[df.path(symbol, hour)] = codes
}

func (df *datafeed) count(symbol string, hour time.Time) int {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.requests[df.path(symbol, hour)]
}

// arrivalTimes returns request arrival times in order.
func (df *datafeed) arrivalTimes() []time.Time {
	df.mu.Lock()
	defer df.mu.Unlock()
	out := append([]time.Time(nil), df.arrivals...)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (df *datafeed) total() int {
	df.mu.Lock()
	defer df.mu.Unlock()
	n := 0
	for _, c := range df.requests {
		n += c
	}
	return n
}

// memCache is an in-memory HourCache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	puts int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) key(instrument string, hour time.Time) string {
	return instrument + "@" + hour.UTC().Format(time.RFC3339)
}

func (m *memCache) Get(_ context.Context, instrument string, hour time.Time) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[m.key(instrument, hour)]
	return d, ok, nil
}

func (m *memCache) Put(_ context.Context, instrument string, hour time.Time, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[m.key(instrument, hour)] = data
	m.puts++
	return nil
}

func testClient(df *datafeed, mutate func(*Options)) *Client {
	opts := Options{
		BaseURL:             df.base(),
		PauseBetweenRetries: time.Millisecond,
		Now:                 func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewClient(opts)
}

func hourOf(s string) time.Time {
	t, err := time.Parse("2006-01-02T15", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}
