// cmd/replay replays archived fills from SQLite through the accounting
// tracker and the survival engine to validate risk numbers offline, without
// the execution gateway or Redis.
//
// Usage:
//
//	go run ./cmd/replay --account=ACCT1 --from=2026-08-28 --spot="CME:ZN Sep26=111.25"
package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"risk-systemv1/internal/levels"
	"risk-systemv1/internal/portfolio"
	"risk-systemv1/internal/pricefmt"
	sqlitestore "risk-systemv1/internal/store/sqlite"
	"risk-systemv1/internal/survival"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	dbPath := flag.String("db", "data/fills.db", "Path to SQLite database")
	account := flag.String("account", "", "Account to replay (required)")
	fromStr := flag.String("from", "", "Start of replay window, YYYY-MM-DD or RFC3339 (default: 24h ago)")
	toStr := flag.String("to", "", "End of replay window (default: now)")
	stopLoss := flag.Float64("stoploss", -10000, "Stop loss in dollars, negative")
	nbm := flag.Float64("nbm", 25, "Survival window in 16ths of a point")
	dollar16 := flag.Float64("dollar16", 62.5, "Contract value of one 16th of a point")
	spotStr := flag.String("spot", "", "Spot overrides: EXCH:CONTRACT=price,... (default: last fill price)")
	verbose := flag.Bool("v", false, "Print every fill")
	flag.Parse()

	if *account == "" {
		log.Fatal("[replay] --account is required")
	}
	from, to := parseWindow(*fromStr, *toStr)

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[replay] sqlite open failed: %v", err)
	}
	defer reader.Close()

	fills, err := reader.ReadFillsBetween(*account, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		log.Fatalf("[replay] fill read failed: %v", err)
	}
	if len(fills) == 0 {
		log.Fatalf("[replay] no fills for %s in [%s, %s]",
			*account, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	// Replay accounting
	tracker := portfolio.NewTracker()
	spots := parseSpots(*spotStr)
	for _, f := range fills {
		st, realized := tracker.Apply(f)
		if _, ok := spots[f.Key()]; !ok {
			spots[f.Key()] = f.Price
		}
		if *verbose {
			fmt.Printf("  [%s] %s %s %d @ %.5f -> pos %+d avg %.5f realized %+.2f\n",
				f.TS.Format("15:04:05"), f.Key(), f.Side, f.Qty, f.Price,
				st.Position, st.AvgCost, realized)
		}
	}

	// Recompute survival per instrument
	engine := survival.New(levels.DefaultZN())
	dollarPerPoint := 16 * *dollar16

	keys := make([]string, 0, len(tracker.States()))
	for key := range tracker.States() {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Println()
	for _, key := range keys {
		st := tracker.State(key)
		spot := spots[key]
		p0 := pricefmt.FromDecimal(spot)
		pnl := st.RealizedPnL*dollarPerPoint + portfolio.MarkToMarket(st, spot)*dollarPerPoint
		r0 := float64(st.Position) * *dollar16

		res := engine.Compute(p0, r0, survival.Options{
			StopLoss: *stopLoss,
			NBM:      *nbm,
			PnL0:     pnl,
		})

		fmt.Printf("%s: position %+d, avg %.5f, spot %s, period P&L %.2f\n",
			key, st.Position, st.AvgCost, p0, pnl)
		fmt.Printf("  extreme %s (%.1f/16 away)\n", res.Extreme, res.SixteenthsToExtreme)
		for _, cp := range res.Curve {
			fmt.Printf("    %-10s risk %8.2f\n", cp.Level, cp.Risk)
		}
	}

	summary := tracker.GetSummary(spots)
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        REPLAY COMPLETE               ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Fills replayed:    %-16d ║\n", summary.TotalFills)
	fmt.Printf("║  Open positions:    %-16d ║\n", summary.OpenPositions)
	fmt.Printf("║  Realized P&L:      %-16.2f ║\n", summary.RealizedPnL*dollarPerPoint)
	fmt.Printf("║  Unrealized P&L:    %-16.2f ║\n", summary.UnrealizedPnL*dollarPerPoint)
	fmt.Printf("║  Total P&L:         %-16.2f ║\n", summary.TotalPnL*dollarPerPoint)
	fmt.Println("╚══════════════════════════════════════╝")
}

func parseWindow(fromStr, toStr string) (time.Time, time.Time) {
	to := time.Now()
	from := to.Add(-24 * time.Hour)
	if fromStr != "" {
		from = parseTime(fromStr, "--from")
	}
	if toStr != "" {
		to = parseTime(toStr, "--to")
	}
	if !from.Before(to) {
		log.Fatalf("[replay] --from %s is not before --to %s", from, to)
	}
	return from, to
}

func parseTime(s, flagName string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t
	}
	log.Fatalf("[replay] invalid %s: %q (want YYYY-MM-DD or RFC3339)", flagName, s)
	return time.Time{}
}

func parseSpots(s string) map[string]float64 {
	out := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idx := strings.LastIndex(pair, "=")
		if idx < 0 {
			log.Fatalf("[replay] invalid spot override %q (want EXCH:CONTRACT=price)", pair)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(pair[idx+1:]), 64)
		if err != nil {
			log.Fatalf("[replay] invalid spot price in %q: %v", pair, err)
		}
		out[strings.TrimSpace(pair[:idx])] = price
	}
	return out
}
