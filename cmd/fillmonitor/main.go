// Command fillmonitor is the standalone fill archiver: it polls the
// execution gateway and persists every fill to SQLite, independently of the
// risk monitor. Running it alongside riskmonitor guarantees a complete fill
// history even while the risk process is down.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"risk-systemv1/config"
	"risk-systemv1/internal/model"
	sqlitestore "risk-systemv1/internal/store/sqlite"
	"risk-systemv1/pkg/ttrest"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[fillmonitor] starting...")

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	os.MkdirAll("data", 0o755)
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[fillmonitor] sqlite init failed: %v", err)
	}
	defer writer.Close()

	tt := ttrest.NewClient(ttrest.Config{
		AppKey:    cfg.TTAppKey,
		AppSecret: cfg.TTAppSecret,
		Env:       cfg.TTEnv,
		AppName:   cfg.TTAppName,
		Company:   cfg.TTCompany,
		Account:   cfg.Account,
	})
	tt.SetInstruments(parseInstruments(os.Getenv("TT_INSTRUMENTS"), cfg.Exchange))

	fillCh := make(chan model.Fill, 1000)
	writerDone := make(chan struct{})
	go func() {
		writer.Run(ctx, fillCh)
		close(writerDone)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cursor, err := writer.GetLastFillTS(cfg.Account)
	if err != nil {
		log.Printf("[fillmonitor] last fill lookup failed, starting cold: %v", err)
	} else if cursor > 0 {
		log.Printf("[fillmonitor] resuming after stored fill ts %d", cursor)
	}

	poll(ctx, tt, fillCh, cursor, time.Duration(cfg.PollIntervalMs)*time.Millisecond)

	close(fillCh)
	<-writerDone
	log.Println("[fillmonitor] shutdown complete.")
}

// poll loops until ctx is cancelled, forwarding new fills to fillCh.
// The exec_id UNIQUE constraint downstream makes re-polled fills harmless,
// so the cursor only needs to be approximately right.
func poll(ctx context.Context, src model.FillSource, fillCh chan<- model.Fill, cursor int64, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		minTS := int64(0)
		if cursor > 0 {
			minTS = cursor + 1
		}
		fills, err := src.Fills(ctx, minTS)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[fillmonitor] poll error: %v", err)
			continue
		}
		for _, f := range fills {
			if ts := f.TS.UnixMilli(); ts > cursor {
				cursor = ts
			}
			select {
			case fillCh <- f:
			default:
				log.Printf("[fillmonitor] WARNING: fill channel full, dropping exec %s", f.ExecID)
			}
		}
	}
}

// parseInstruments reads "instrumentId=contract" pairs, comma separated,
// e.g. "123456=ZN Sep26,123457=ZB Sep26".
func parseInstruments(s, exchange string) map[int64]ttrest.InstrumentRef {
	out := make(map[int64]ttrest.InstrumentRef)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			log.Printf("[fillmonitor] ignoring malformed instrument mapping %q", pair)
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			log.Printf("[fillmonitor] ignoring malformed instrument id %q", parts[0])
			continue
		}
		out[id] = ttrest.InstrumentRef{Exchange: exchange, Contract: strings.TrimSpace(parts[1])}
	}
	return out
}
