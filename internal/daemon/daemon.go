package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coproc-network/coproc/internal/api"
	"github.com/coproc-network/coproc/internal/app/lifecycle"
	"github.com/coproc-network/coproc/internal/app/settlement"
	"github.com/coproc-network/coproc/internal/app/stake"
	"github.com/coproc-network/coproc/internal/health"
	"github.com/coproc-network/coproc/internal/infra/events"
	"github.com/coproc-network/coproc/internal/infra/ledger"
	_ "github.com/coproc-network/coproc/internal/infra/metrics" // Register Prometheus metrics
	"github.com/coproc-network/coproc/internal/infra/sqlite"
	"github.com/coproc-network/coproc/internal/infra/taskstore"
	"github.com/coproc-network/coproc/internal/infra/verify"
)

// Daemon is the co-processor runtime. It wires together all services.
type Daemon struct {
	Config     Config
	DB         *sqlite.DB
	Ledger     ledger.Adapter
	Tasks      *taskstore.Store
	Operators  *stake.Registry
	Settlement *settlement.Engine
	Gateway    verify.Gateway
	Emitter    *events.Emitter
	Lifecycle  *lifecycle.Controller
	Server     *api.Server
	Health     *health.Checker

	cancel context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	dataDir := cfg.Node.DataDir
	if dataDir == "" {
		dataDir = coprocHome()
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sqlite.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The standalone deployment runs against the in-process ledger. A
	// chain-backed adapter slots in here without touching anything else.
	l := ledger.NewLocal()
	for account, amount := range cfg.Ledger.Genesis {
		l.Mint(account, amount)
	}

	var vkBytes []byte
	if cfg.Verifier.Mode == "groth16" {
		vkBytes, err = os.ReadFile(cfg.Verifier.VerifyingKeyPath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("read verifying key: %w", err)
		}
	}
	gateway, err := verify.New(cfg.Verifier.Mode, cfg.Verifier.URL, vkBytes)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build verifier gateway: %w", err)
	}

	emitter := events.NewEmitter(db)
	tasks := taskstore.New(db)
	operators := stake.NewRegistry(db, l, emitter, cfg.Economics.MinStake)
	engine := settlement.NewEngine(db, l, cfg.Economics.BaseReward)
	ctl := lifecycle.NewController(tasks, operators, engine, gateway, emitter,
		lifecycle.RejectPolicy(cfg.Lifecycle.RejectPolicy))

	srv := api.NewServer(ctl, tasks, operators, engine, emitter, cfg.API.AdminToken)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}
	// Dev faucet: only the local ledger can mint.
	srv.EnableFaucet(l)

	checker := health.NewChecker(db, dataDir)
	srv.SetHealthFn(checker.IsHealthy)

	return &Daemon{
		Config:     cfg,
		DB:         db,
		Ledger:     l,
		Tasks:      tasks,
		Operators:  operators,
		Settlement: engine,
		Gateway:    gateway,
		Emitter:    emitter,
		Lifecycle:  ctl,
		Server:     srv,
		Health:     checker,
	}, nil
}

// Serve runs the HTTP API until the context is cancelled or a signal
// arrives, then shuts down gracefully.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long for SSE
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.DB.Close()
	}()

	log.Printf("[daemon] coproc serving on http://%s (verifier: %s)", addr, d.Gateway.Name())
	if d.Config.Telemetry.Prometheus {
		log.Printf("[daemon] metrics at http://%s/metrics", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
