// Package main runs the sniper service: source adapters feeding the pool
// aggregator, risk screening, admission against the stored sniper configs,
// trade dispatch through the custody signer and a WebSocket fanout of every
// pool and trade event.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dex-sniper-core/internal/admission"
	"dex-sniper-core/internal/aggregator"
	"dex-sniper-core/internal/broadcast"
	"dex-sniper-core/internal/chain"
	"dex-sniper-core/internal/dispatch"
	"dex-sniper-core/internal/observability"
	"dex-sniper-core/internal/pipeline"
	"dex-sniper-core/internal/risk"
	"dex-sniper-core/internal/source"
	"dex-sniper-core/internal/storage"
	chstore "dex-sniper-core/internal/storage/clickhouse"
	"dex-sniper-core/internal/storage/memory"
	"dex-sniper-core/internal/storage/migrations"
	pgstore "dex-sniper-core/internal/storage/postgres"
)

// allStores holds the storage implementations the service needs.
type allStores struct {
	decisions    storage.DecisionStore
	trades       storage.TradeStore
	policies     storage.PolicyStore
	observations storage.ObservationStore
}

func main() {
	// .env is optional; system env vars win.
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	sources := flag.String("sources", "dexscreener,gmgn,pumpportal", "Comma-separated source adapters to run")
	chainName := flag.String("chain", "solana", "Default chain for polled sources")
	signerURL := flag.String("signer-url", os.Getenv("SIGNER_URL"), "Custody signer service URL")
	rpcEndpoints := flag.String("rpc-endpoints", os.Getenv("RPC_ENDPOINTS"), "Per-chain RPC nodes, e.g. solana=https://node1;bsc=https://node2")
	oracleURL := flag.String("oracle-url", "https://api.gopluslabs.io", "Token security oracle base URL")
	failClosed := flag.Bool("fail-closed", false, "Reject admissions when the security oracle is unavailable")
	listenAddr := flag.String("listen-addr", ":8080", "HTTP address for /ws, /health and /metrics")
	workers := flag.Int("workers", pipeline.DefaultWorkers, "Pool-event evaluation workers")
	tradeDeadline := flag.Duration("trade-deadline", 30*time.Second, "Hard per-trade lifecycle deadline")
	staleAfter := flag.Duration("stale-after", 30*time.Minute, "Pool staleness window")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *signerURL == "" {
		logger.Fatal("--signer-url is required")
	}
	clients := parseRPCEndpoints(*rpcEndpoints)
	if len(clients) == 0 {
		logger.Fatal("--rpc-endpoints is required, e.g. solana=https://node")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	srcs, err := buildSources(*sources, *chainName, logger)
	if err != nil {
		logger.Fatalf("Failed to build sources: %v", err)
	}

	metrics := observability.NewMetrics("")

	hub := broadcast.NewHub(broadcast.Options{Logger: logger})
	defer hub.Close()

	oracle := risk.NewHTTPOracle(risk.OracleConfig{BaseURL: *oracleURL})
	screener := risk.NewScreener(risk.Options{Oracle: oracle, Logger: logger})

	controller := admission.NewController(admission.Options{
		Configs:    stores.policies,
		Recorder:   pipeline.StoreDecisionRecorder{Store: stores.decisions},
		FailClosed: *failClosed,
		Logger:     logger,
	})

	custody := chain.NewCustody(chain.NewHTTPSigner(*signerURL, 10*time.Second), clients, logger)

	p := pipeline.New(pipeline.Options{
		Sources:    srcs,
		Aggregator: aggregator.New(aggregator.Config{StaleAfter: *staleAfter, Logger: logger}),
		Screener:   screener,
		Controller: controller,
		Hub:        hub,
		Dispatch: dispatch.Options{
			Wallet:   custody,
			Recorder: pipeline.StoreTradeRecorder{Store: stores.trades},
			Deadline: *tradeDeadline,
			Logger:   logger,
		},
		Observations: stores.observations,
		Metrics:      metrics,
		Logger:       logger,
		Workers:      *workers,
	})

	httpDone := startHTTPServer(ctx, *listenAddr, hub, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-httpDone:
		}
	}()

	logger.Printf("Starting pipeline with sources %s on %s", *sources, *listenAddr)
	if err := p.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("Pipeline error: %v", err)
	}

	<-httpDone
	logger.Println("Shutdown complete")
}

// parseRPCEndpoints parses "chain=url;chain=url" into per-chain clients.
func parseRPCEndpoints(spec string) map[string]*chain.Client {
	clients := make(map[string]*chain.Client)
	for _, part := range strings.Split(spec, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
			continue
		}
		clients[strings.TrimSpace(kv[0])] = chain.NewClient(strings.TrimSpace(kv[1]))
	}
	return clients
}

// buildSources instantiates the requested adapters with their defaults.
func buildSources(spec, chainName string, logger *log.Logger) ([]source.Source, error) {
	var srcs []source.Source
	for _, name := range strings.Split(spec, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		switch name {
		case "":
		case "dexscreener":
			cfg := source.DefaultDexScreenerConfig()
			cfg.Chain = chainName
			srcs = append(srcs, source.NewDexScreenerSource(cfg, logger))
		case "gmgn":
			cfg := source.DefaultGmgnConfig()
			srcs = append(srcs, source.NewGmgnSource(cfg, logger))
		case "pumpportal":
			srcs = append(srcs, source.NewPumpPortalSource(source.DefaultPumpPortalConfig(), logger))
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}
	if len(srcs) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}
	return srcs, nil
}

// createStores creates the storage layer and applies migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			decisions:    memory.NewDecisionStore(),
			trades:       memory.NewTradeStore(),
			policies:     memory.NewPolicyStore(),
			observations: memory.NewObservationStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
		conn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		decisions:    pgstore.NewDecisionStore(pool),
		trades:       pgstore.NewTradeStore(pool),
		policies:     pgstore.NewPolicyStore(pool),
		observations: chstore.NewObservationStore(conn),
	}
	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// startHTTPServer serves /ws, /health and /metrics. The returned channel
// closes once the server has shut down.
func startHTTPServer(ctx context.Context, addr string, hub *broadcast.Hub, logger *log.Logger) <-chan struct{} {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.Handle("/ws", broadcast.NewWSHandler(hub, broadcast.DefaultWSConfig(), logger))

	srv := &http.Server{Addr: addr, Handler: mux}
	done := make(chan struct{})

	go func() {
		logger.Printf("Starting HTTP server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("HTTP server error: %v", err)
		}
	}()
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return done
}
