// market/instruments.go
package market

import (
	"fmt"
	"sort"
	"strings"
)

// InstrumentMeta describes a Dukascopy instrument. PointFactor converts the
// raw integer prices stored in hour files to decimal prices.
type InstrumentMeta struct {
	Name          string
	BaseCurrency  string
	QuoteCurrency string
	PointFactor   float64
}

func fx(name string, factor float64) InstrumentMeta {
	return InstrumentMeta{
		Name:          name,
		BaseCurrency:  name[:3],
		QuoteCurrency: name[3:],
		PointFactor:   factor,
	}
}

// Instruments holds the Dukascopy FX majors, crosses and spot metals.
// JPY quoted pairs and metals are stored with three decimals, the rest with five.
var Instruments = instrumentTable(
	[]string{
		// majors
		"EURUSD", "GBPUSD", "USDJPY", "USDCHF", "USDCAD", "AUDUSD", "NZDUSD",
		// crosses
		"AUDCAD", "AUDCHF", "AUDJPY", "AUDNZD", "AUDSGD",
		"CADCHF", "CADHKD", "CADJPY",
		"CHFJPY", "CHFSGD",
		"EURAUD", "EURCAD", "EURCHF", "EURDKK", "EURGBP", "EURHKD", "EURJPY",
		"EURNOK", "EURNZD", "EURPLN", "EURSEK", "EURSGD", "EURTRY",
		"GBPAUD", "GBPCAD", "GBPCHF", "GBPJPY", "GBPNZD",
		"HKDJPY",
		"NZDCAD", "NZDCHF", "NZDJPY",
		"SGDJPY",
		"USDCNH", "USDDKK", "USDHKD", "USDMXN", "USDNOK", "USDPLN", "USDSEK",
		"USDSGD", "USDTRY", "USDZAR",
		// metals
		"XAUUSD", "XAGUSD",
	},
)

func instrumentTable(names []string) map[string]InstrumentMeta {
	table := make(map[string]InstrumentMeta, len(names))
	for _, name := range names {
		factor := 100_000.0
		if strings.HasSuffix(name, "JPY") || strings.HasPrefix(name, "XA") {
			factor = 1_000
		}
		table[name] = fx(name, factor)
	}
	return table
}

// NormalizeSymbol upper-cases a symbol and drops the separators used by
// other feeds, so "eur_usd" and "EUR/USD" both become "EURUSD".
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.NewReplacer("_", "", "/", "", "-", "").Replace(s)
}

// LookupInstrument resolves a user supplied symbol.
func LookupInstrument(symbol string) (InstrumentMeta, error) {
	meta, ok := Instruments[NormalizeSymbol(symbol)]
	if !ok {
		return InstrumentMeta{}, fmt.Errorf("unsupported instrument %q", symbol)
	}
	return meta, nil
}

// InstrumentNames returns the supported symbols in sorted order.
func InstrumentNames() []string {
	names := make([]string, 0, len(Instruments))
	for name := range Instruments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Price converts a raw datafeed price to a decimal price.
func (m InstrumentMeta) Price(raw uint32) float64 {
	return float64(raw) / m.PointFactor
}
