// Package monitor is the core polling service: it ingests fills from the
// execution gateway, maintains position accounting per instrument, computes
// survival curves against the technical level table, and publishes risk and
// position updates to live consumers.
package monitor

import (
	"context"
	"log"
	"time"

	"risk-systemv1/internal/levels"
	"risk-systemv1/internal/markethours"
	"risk-systemv1/internal/metrics"
	"risk-systemv1/internal/model"
	"risk-systemv1/internal/notification"
	"risk-systemv1/internal/portfolio"
	"risk-systemv1/internal/ringbuf"
	"risk-systemv1/internal/survival"
)

// Config holds the monitor's risk and polling parameters.
type Config struct {
	Account       string
	Exchange      string
	Contracts     []string // e.g. "ZN Sep26"
	StopLoss      float64  // dollars, negative
	NBM           float64  // survival window in 16ths of a point
	DollarPer16th float64  // contract value of one 16th of a point
	PollInterval  time.Duration
}

// RiskArchiver persists published risk updates for audit.
type RiskArchiver interface {
	SaveRiskResult(u *model.RiskUpdate) error
}

// Deps are the monitor's injected dependencies. Source, Results and
// Checkpoints are required; the rest degrade gracefully when nil.
type Deps struct {
	Source      model.FillSource
	Results     model.ResultWriter
	Checkpoints model.CheckpointStore
	FillLog     model.FillWriter  // fill audit log, optional
	History     model.FillReader  // recovery replay source, optional
	Archive     RiskArchiver      // risk result audit, optional
	Notifier    notification.Notifier
	Metrics     *metrics.Metrics
	Health      *metrics.HealthStatus
}

// Service is the top-level orchestrator for the risk monitor.
// It wires all dependencies, manages lifecycle, and runs the poll loop.
type Service struct {
	cfg  Config
	deps Deps

	engine  *survival.Engine
	tracker *portfolio.Tracker
	limits  *portfolio.LimitChecker
	prices  *ringbuf.Ring
	fillCh  chan model.Fill

	// Poll-loop state, touched only from Run's goroutine.
	seen       map[string]bool // processed exec IDs
	cursor     int64           // newest processed fill TS, unix millis
	latestSpot map[string]float64
	period     time.Time
	marketOpen bool
}

// New creates a Service over the given level table.
func New(cfg Config, table *levels.Table, limits portfolio.Limits, deps Deps) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	limits.StopLoss = cfg.StopLoss
	return &Service{
		cfg:        cfg,
		deps:       deps,
		engine:     survival.New(table),
		tracker:    portfolio.NewTracker(),
		limits:     portfolio.NewLimitChecker(limits),
		prices:     ringbuf.New(4096),
		fillCh:     make(chan model.Fill, 1000),
		seen:       make(map[string]bool),
		latestSpot: make(map[string]float64),
	}
}

// PushPrice feeds a spot price into the monitor's ring buffer. Safe to call
// from exactly one producer goroutine.
func (svc *Service) PushPrice(p model.SpotPrice) {
	if !svc.prices.Push(p) && svc.deps.Metrics != nil {
		svc.deps.Metrics.RingBufOverflow.Inc()
	}
}

// Tracker exposes the accounting state for status endpoints.
func (svc *Service) Tracker() *portfolio.Tracker {
	return svc.tracker
}

// Run recovers state, starts the fill log writer and blocks in the poll loop
// until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	log.Printf("[monitor] starting risk monitor for account %s, contracts %v",
		svc.cfg.Account, svc.cfg.Contracts)

	if err := svc.recover(ctx); err != nil {
		return err
	}

	if svc.deps.FillLog != nil {
		go svc.deps.FillLog.Run(ctx, svc.fillCh)
	}

	now := time.Now()
	svc.period = markethours.PeriodStart(now)
	svc.marketOpen = markethours.IsMarketOpen(now)
	if svc.deps.Metrics != nil {
		state := 0.0
		if svc.marketOpen {
			state = 1.0
		}
		svc.deps.Metrics.MarketState.Set(state)
	}
	if svc.deps.Health != nil {
		keys := make([]string, 0, len(svc.cfg.Contracts))
		for _, ct := range svc.cfg.Contracts {
			keys = append(keys, svc.cfg.Exchange+":"+ct)
		}
		svc.deps.Health.SetContracts(keys)
		svc.deps.Health.SetMonitorOK(true)
	}

	log.Printf("[monitor] polling every %v, stop loss %.0f, NBM %.0f/16",
		svc.cfg.PollInterval, svc.cfg.StopLoss, svc.cfg.NBM)

	ticker := time.NewTicker(svc.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			svc.shutdown()
			return nil
		case <-ticker.C:
			svc.Cycle(ctx)
		}
	}
}

// Cycle runs one full monitor iteration: session maintenance, fill poll,
// price drain, and risk recomputation for every configured instrument.
func (svc *Service) Cycle(ctx context.Context) {
	now := time.Now()
	svc.checkSession(now)
	svc.pollFills(ctx)
	svc.drainPrices()
	svc.computeAll(ctx, now)
}

// recover rebuilds accounting state from the fill store and validates the
// saved checkpoint against it. The checkpoint is advisory; the replay is the
// source of truth.
func (svc *Service) recover(ctx context.Context) error {
	cursor, err := svc.deps.Checkpoints.LoadCheckpoint(ctx, svc.cfg.Account)
	if err != nil {
		log.Printf("[monitor] checkpoint load failed, starting cold: %v", err)
	}
	svc.cursor = cursor

	if svc.deps.History == nil {
		return nil
	}

	periodStart := markethours.PeriodStart(time.Now())
	fills, err := svc.deps.History.ReadFillsBetween(
		svc.cfg.Account, periodStart.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		log.Printf("[monitor] WARNING: fill replay failed: %v", err)
		return nil
	}

	svc.tracker.Replay(fills)
	var maxTS int64
	for _, f := range fills {
		svc.seen[f.ExecID] = true
		if ts := f.TS.UnixMilli(); ts > maxTS {
			maxTS = ts
		}
		svc.latestSpot[f.Key()] = f.Price
	}
	if maxTS > svc.cursor {
		log.Printf("[monitor] checkpoint behind replayed fills (%d < %d), advancing", svc.cursor, maxTS)
		svc.cursor = maxTS
	}
	log.Printf("[monitor] recovered %d fills for the current period", len(fills))
	return nil
}

// shutdown persists the final checkpoint.
func (svc *Service) shutdown() {
	log.Println("[monitor] shutdown signal received, saving checkpoint...")
	shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := svc.deps.Checkpoints.SaveCheckpoint(shutCtx, svc.cfg.Account, svc.cursor); err != nil {
		log.Printf("[monitor] final checkpoint save failed: %v", err)
	}
	log.Println("[monitor] shutdown complete.")
}
