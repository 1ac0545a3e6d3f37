package analysis

import (
	"sort"
	"time"

	"github.com/aristath/risk-engine/internal/modules/marketdata"
)

// DefaultReturnPeriods is the bar count a symbol needs to participate in
// return-based analytics (one trading year).
const DefaultReturnPeriods = 252

// returnsCacheTTL bounds how stale a derived return table may get before it
// is recomputed.
const returnsCacheTTL = 300 * time.Second

// ReturnsTable is an aligned table of per-symbol simple daily returns,
// inner-joined on the dates every symbol has data for.
type ReturnsTable struct {
	Symbols []string             // sorted
	Dates   []string             // chronological, common to all symbols
	Series  map[string][]float64 // per symbol, aligned with Dates
}

// Rows returns the number of aligned observations
func (t *ReturnsTable) Rows() int {
	return len(t.Dates)
}

// returnsCache pairs a derived table with its generation time. It is swapped
// wholesale, never mutated in place.
type returnsCache struct {
	table       *ReturnsTable
	generatedAt time.Time
}

// calculateReturns derives the aligned return table from the price history,
// serving the cached table while it is younger than the TTL. Symbols with
// fewer than `periods` bars are skipped rather than erroring. Callers must
// hold the analyzer lock.
func (a *Analyzer) calculateReturns(periods int) *ReturnsTable {
	now := a.nowFn()

	if a.cache != nil && now.Sub(a.cache.generatedAt) < returnsCacheTTL {
		return a.cache.table
	}

	table := buildReturnsTable(a.history, periods)
	a.cache = &returnsCache{table: table, generatedAt: now}

	a.log.Debug().
		Int("symbols", len(table.Symbols)).
		Int("rows", table.Rows()).
		Msg("Recomputed return table")

	return table
}

func buildReturnsTable(history marketdata.History, periods int) *ReturnsTable {
	type symbolReturns struct {
		byDate map[string]float64
	}

	perSymbol := make(map[string]symbolReturns)

	for symbol, bars := range history {
		if len(bars) < periods {
			continue
		}

		recent := bars[len(bars)-periods:]
		byDate := make(map[string]float64, len(recent)-1)

		// simple period-over-period change; the first bar has no prior
		// value and is dropped
		for i := 1; i < len(recent); i++ {
			prev := recent[i-1].Close
			if prev == 0 {
				continue
			}
			byDate[recent[i].Date] = (recent[i].Close - prev) / prev
		}

		perSymbol[symbol] = symbolReturns{byDate: byDate}
	}

	table := &ReturnsTable{Series: make(map[string][]float64)}
	if len(perSymbol) == 0 {
		return table
	}

	for symbol := range perSymbol {
		table.Symbols = append(table.Symbols, symbol)
	}
	sort.Strings(table.Symbols)

	// inner join: keep only dates present for every symbol
	first := perSymbol[table.Symbols[0]]
	var common []string
	for date := range first.byDate {
		present := true
		for _, symbol := range table.Symbols[1:] {
			if _, ok := perSymbol[symbol].byDate[date]; !ok {
				present = false
				break
			}
		}
		if present {
			common = append(common, date)
		}
	}
	sort.Strings(common)
	table.Dates = common

	for _, symbol := range table.Symbols {
		series := make([]float64, len(common))
		for i, date := range common {
			series[i] = perSymbol[symbol].byDate[date]
		}
		table.Series[symbol] = series
	}

	return table
}
