// Command ladder_gateway serves the trading front end: it bridges Redis
// PubSub risk and position updates to WebSocket clients, with REST endpoints
// for state snapshots, history, and missed-message recovery.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"risk-systemv1/config"
	"risk-systemv1/internal/gateway"
	redisstore "risk-systemv1/internal/store/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[ladder_gateway] starting...")

	processStart := time.Now()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader, err := redisstore.NewReader(redisstore.ReaderConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatalf("[ladder_gateway] redis connect failed: %v", err)
	}
	defer reader.Close()
	if err := reader.Ping(ctx); err != nil {
		log.Fatalf("[ladder_gateway] redis ping failed: %v", err)
	}

	contracts := cfg.ParseContracts()
	keys := make([]string, 0, len(contracts))
	for _, ct := range contracts {
		keys = append(keys, cfg.Exchange+":"+ct)
	}

	hub := gateway.NewHub(reader, keys)
	go hub.Run(ctx)
	go hub.StartStatusBroadcast(ctx, processStart)

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, processStart)

	srv := &http.Server{
		Addr:    cfg.GatewayAddr,
		Handler: mux,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[ladder_gateway] shutdown signal received")
		cancel()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[ladder_gateway] listening on %s, contracts %v", cfg.GatewayAddr, keys)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[ladder_gateway] server error: %v", err)
	}
	log.Println("[ladder_gateway] shutdown complete.")
}
