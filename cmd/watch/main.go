package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"circles-flow/internal/events"
	"circles-flow/internal/observability"
	"circles-flow/internal/storage"
	"circles-flow/internal/storage/migrations"
	pgstore "circles-flow/internal/storage/postgres"
	"circles-flow/internal/tokeninfo"
)

func main() {
	wsURL := flag.String("ws-url", "", "Circles RPC WebSocket endpoint (e.g. wss://rpc.aboutcircles.com/ws)")
	postgresDSN := flag.String("postgres-dsn", "", "Optional PostgreSQL DSN for persisting token rows")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	cacheSize := flag.Int("cache-size", tokeninfo.DefaultCacheSize, "Token-info cache capacity")
	verbose := flag.Bool("verbose", false, "Log each warmed token")
	flag.Parse()

	if *wsURL == "" {
		fmt.Fprintln(os.Stderr, "Error: --ws-url is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store storage.TokenInfoStore
	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			fatal("connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			fatal("apply postgres migrations: %v", err)
		}
		store = pgstore.NewTokenInfoStore(pool)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		log.Printf("[watch] metrics listening on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			log.Printf("[watch] metrics server: %v", err)
		}
	}()

	client, err := events.NewClient(ctx, *wsURL, nil)
	if err != nil {
		fatal("connect websocket: %v", err)
	}
	defer client.Close()

	stream, err := client.Subscribe(ctx)
	if err != nil {
		fatal("subscribe: %v", err)
	}
	log.Printf("[watch] subscribed to circles events at %s", *wsURL)

	cache := tokeninfo.NewCache(*cacheSize)
	warmer := events.NewCacheWarmer(cache, store)
	warmer.SetVerbose(*verbose)
	warmer.Run(ctx, stream)

	log.Printf("[watch] shutting down, %d tokens cached", cache.Len())
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
