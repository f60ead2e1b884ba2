package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"risk-systemv1/config"
	"risk-systemv1/internal/levels"
	"risk-systemv1/internal/metrics"
	"risk-systemv1/internal/model"
	"risk-systemv1/internal/monitor"
	"risk-systemv1/internal/notification"
	"risk-systemv1/internal/portfolio"
	redisstore "risk-systemv1/internal/store/redis"
	sqlitestore "risk-systemv1/internal/store/sqlite"
	"risk-systemv1/pkg/ttrest"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[riskmonitor] starting...")

	cfg := config.Load()
	contracts := cfg.ParseContracts()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Storage ----
	os.MkdirAll("data", 0o755)
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[riskmonitor] sqlite init failed: %v", err)
	}
	sqlReader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[riskmonitor] sqlite reader init failed: %v", err)
	}

	redisWriter, err := redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatalf("[riskmonitor] redis init failed: %v", err)
	}

	// ---- Metrics + health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()
	health.StartLivenessChecker(ctx, redisWriter.Client(), sqlWriter.DB(), 10*time.Second)

	// ---- Redis writes behind a circuit breaker ----
	breaker := redisstore.NewCircuitBreaker(5, 30*time.Second)
	breaker.OnStateChange = func(from, to redisstore.State) {
		log.Printf("[riskmonitor] redis circuit breaker: %s -> %s", from, to)
		prom.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			prom.RedisCircuitBreakerTrips.Inc()
		}
	}
	results := redisstore.NewBufferedWriter(ctx, redisWriter, breaker, 10000)
	results.OnBuffer = func() { prom.RedisBufferedWrites.Inc() }

	// ---- Execution gateway client ----
	tt := ttrest.NewClient(ttrest.Config{
		AppKey:    cfg.TTAppKey,
		AppSecret: cfg.TTAppSecret,
		Env:       cfg.TTEnv,
		AppName:   cfg.TTAppName,
		Company:   cfg.TTCompany,
		Account:   cfg.Account,
	})
	tt.SetInstruments(parseInstruments(os.Getenv("TT_INSTRUMENTS"), cfg.Exchange))

	// ---- Alerting ----
	notifier := buildNotifier(cfg)

	// ---- Monitor service ----
	svc := monitor.New(monitor.Config{
		Account:       cfg.Account,
		Exchange:      cfg.Exchange,
		Contracts:     contracts,
		StopLoss:      cfg.StopLoss,
		NBM:           cfg.NBM,
		DollarPer16th: cfg.DollarPer16th,
		PollInterval:  time.Duration(cfg.PollIntervalMs) * time.Millisecond,
	}, levels.DefaultZN(), portfolio.DefaultLimits(), monitor.Deps{
		Source:      tt,
		Results:     results,
		Checkpoints: redisWriter,
		FillLog:     sqlWriter,
		History:     sqlReader,
		Archive:     sqlWriter,
		Notifier:    notifier,
		Metrics:     prom,
		Health:      health,
	})

	// ---- Spot price feed from the market data channel ----
	go consumePrices(ctx, cfg, svc)

	// ---- Signals ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[riskmonitor] fatal: %v", err)
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutCancel()
	metricsSrv.Stop(shutCtx)
	results.Close()
	redisWriter.Close()
	sqlReader.Close()
	sqlWriter.Close()
}

// consumePrices subscribes to the market data PubSub channel and feeds spot
// prices into the monitor. Reconnects with backoff on subscription loss.
func consumePrices(ctx context.Context, cfg *config.Config, svc *monitor.Service) {
	reader, err := redisstore.NewReader(redisstore.ReaderConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[riskmonitor] WARNING: price feed unavailable: %v (fills mark to last trade)", err)
		return
	}
	defer reader.Close()

	msgs := make(chan redisstore.Message, 1024)
	go func() {
		for {
			err := reader.Subscribe(ctx, []string{"md.prices"}, msgs)
			if ctx.Err() != nil {
				return
			}
			log.Printf("[riskmonitor] price subscription lost, retrying: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-msgs:
			var p model.SpotPrice
			if err := json.Unmarshal(msg.Data, &p); err != nil {
				continue
			}
			svc.PushPrice(p)
		}
	}
}

// buildNotifier assembles the configured alert backends behind a throttle.
func buildNotifier(cfg *config.Config) notification.Notifier {
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	return notification.NewThrottled(
		time.Duration(cfg.AlertMinInterval)*time.Second, backends...)
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
			log.Printf("[riskmonitor] ignoring malformed instrument mapping %q", pair)
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			log.Printf("[riskmonitor] ignoring malformed instrument id %q", parts[0])
			continue
		}
		out[id] = ttrest.InstrumentRef{Exchange: exchange, Contract: strings.TrimSpace(parts[1])}
	}
	return out
}
