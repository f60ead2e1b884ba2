package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the risk monitor.
type Metrics struct {
	FillsTotal       prometheus.Counter
	RiskComputations prometheus.Counter
	PollErrors       prometheus.Counter
	PricesTotal      prometheus.Counter

	ComputeDur      prometheus.Histogram
	PollDur         prometheus.Histogram
	RedisWriteDur   prometheus.Histogram
	SQLiteCommitDur prometheus.Histogram

	// Per-instrument state gauges
	Position            *prometheus.GaugeVec // labels: contract
	RealizedPnL         *prometheus.GaugeVec
	UnrealizedPnL       *prometheus.GaugeVec
	RiskSize            *prometheus.GaugeVec
	SixteenthsToExtreme *prometheus.GaugeVec

	// Ring buffer overflow
	RingBufOverflow prometheus.Counter

	// Circuit breaker metrics
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedWrites      prometheus.Counter

	// Alerting
	AlertsTotal *prometheus.CounterVec // labels: reason

	// Market session state
	MarketState        prometheus.Gauge       // 0=closed, 1=open
	SessionTransitions *prometheus.CounterVec // labels: type=open|halt|period_roll
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		FillsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskmon_fills_total",
			Help: "Total fills ingested from the gateway",
		}),
		RiskComputations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskmon_risk_computations_total",
			Help: "Total survival curve computations",
		}),
		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskmon_poll_errors_total",
			Help: "Fill poll failures against the gateway REST API",
		}),
		PricesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskmon_prices_total",
			Help: "Spot price updates consumed",
		}),

		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskmon_compute_duration_seconds",
			Help:    "Survival curve compute latency",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),
		PollDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskmon_poll_duration_seconds",
			Help:    "Fill poll round-trip latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskmon_redis_write_duration_seconds",
			Help:    "Redis write latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskmon_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),

		Position: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskmon_position_contracts",
			Help: "Current signed position per contract",
		}, []string{"contract"}),
		RealizedPnL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskmon_realized_pnl_dollars",
			Help: "Realized P&L per contract (intraday period)",
		}, []string{"contract"}),
		UnrealizedPnL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskmon_unrealized_pnl_dollars",
			Help: "Unrealized P&L per contract at the latest mark",
		}, []string{"contract"}),
		RiskSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskmon_risk_dollars_per_16th",
			Help: "Current risk size per contract in dollars per 16th",
		}, []string{"contract"}),
		SixteenthsToExtreme: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskmon_sixteenths_to_extreme",
			Help: "Distance to the survival extreme in 16ths of a point",
		}, []string{"contract"}),

		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskmon_ringbuf_overflow_total",
			Help: "Ring buffer push overflows (dropped price updates)",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskmon_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskmon_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskmon_redis_buffered_writes_total",
			Help: "Writes buffered locally during Redis circuit breaker open state",
		}),

		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskmon_alerts_total",
			Help: "Risk alerts sent, by reason",
		}, []string{"reason"}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskmon_market_state",
			Help: "Market session state (0=closed, 1=open)",
		}),
		SessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskmon_session_transitions_total",
			Help: "Market session transitions (open, halt, period_roll)",
		}, []string{"type"}),
	}

	prometheus.MustRegister(
		m.FillsTotal,
		m.RiskComputations,
		m.PollErrors,
		m.PricesTotal,
		m.ComputeDur,
		m.PollDur,
		m.RedisWriteDur,
		m.SQLiteCommitDur,
		m.Position,
		m.RealizedPnL,
		m.UnrealizedPnL,
		m.RiskSize,
		m.SixteenthsToExtreme,
		m.RingBufOverflow,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedWrites,
		m.AlertsTotal,
		m.MarketState,
		m.SessionTransitions,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	GatewayConnected bool      `json:"gateway_connected"`
	LastFillTime     time.Time `json:"last_fill_time"`
	LastPriceTime    time.Time `json:"last_price_time"`
	RedisConnected   bool      `json:"redis_connected"`
	SQLiteOK         bool      `json:"sqlite_ok"`
	MonitorOK        bool      `json:"monitor_ok"`
	Contracts        []string  `json:"contracts"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetGatewayConnected(v bool) {
	h.mu.Lock()
	h.GatewayConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastFillTime(t time.Time) {
	h.mu.Lock()
	h.LastFillTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastPriceTime(t time.Time) {
	h.mu.Lock()
	h.LastPriceTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetMonitorOK(v bool) {
	h.mu.Lock()
	h.MonitorOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetContracts(contracts []string) {
	h.mu.Lock()
	h.Contracts = contracts
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Determine overall status
	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.GatewayConnected || !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	// Fill age
	fillAge := ""
	if !h.LastFillTime.IsZero() {
		fillAge = time.Since(h.LastFillTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status           string   `json:"status"`
		Uptime           string   `json:"uptime"`
		GatewayConnected bool     `json:"gateway_connected"`
		LastFillTime     string   `json:"last_fill_time"`
		FillAge          string   `json:"fill_age"`
		LastPriceTime    string   `json:"last_price_time"`
		RedisConnected   bool     `json:"redis_connected"`
		RedisLatencyMs   float64  `json:"redis_latency_ms"`
		SQLiteOK         bool     `json:"sqlite_ok"`
		SQLiteLatencyMs  float64  `json:"sqlite_latency_ms"`
		MonitorOK        bool     `json:"monitor_ok"`
		Contracts        []string `json:"contracts"`
		LastCheckAt      string   `json:"last_check_at"`
	}{
		Status:           overallStatus,
		Uptime:           time.Since(h.StartedAt).Round(time.Second).String(),
		GatewayConnected: h.GatewayConnected,
		LastFillTime:     h.LastFillTime.Format(time.RFC3339),
		FillAge:          fillAge,
		LastPriceTime:    h.LastPriceTime.Format(time.RFC3339),
		RedisConnected:   h.RedisConnected,
		RedisLatencyMs:   h.RedisLatencyMs,
		SQLiteOK:         h.SQLiteOK,
		SQLiteLatencyMs:  h.SQLiteLatencyMs,
		MonitorOK:        h.MonitorOK,
		Contracts:        h.Contracts,
		LastCheckAt:      h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
