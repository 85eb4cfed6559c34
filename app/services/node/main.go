package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/ledger/app/services/node/handlers"
	"github.com/ardanlabs/ledger/business/core/dispatch"
	"github.com/ardanlabs/ledger/business/core/ledger"
	"github.com/ardanlabs/ledger/business/sys/store"
	"github.com/ardanlabs/ledger/foundation/blockchain/pow"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/logger"
	"github.com/ardanlabs/ledger/foundation/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:60s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		Node struct {
			Address    string `conf:"default:localhost:3000"`
			Owner      string `conf:"default:miner1"`
			Receiving  bool   `conf:"default:true"`
			Mineable   bool   `conf:"default:true"`
			MinePath   string `conf:"default:zblock/mine.txt"`
			ChainPath  string `conf:"default:zblock/chain.json"`
			HashesPath string `conf:"default:zblock/hashes.txt"`
		}
		Mining struct {
			Target        string `conf:"default:bits"`
			MaxDifficulty uint   `conf:"default:24"`
			MaxAttempts   uint64 `conf:"default:4294967296"`
		}
		Pool struct {
			Workers       int `conf:"default:4"`
			QueueCapacity int `conf:"default:0"`
		}
		Dispatch struct {
			PagesDir      string        `conf:"default:zblock/pages"`
			SleepDuration time.Duration `conf:"default:5s"`
			ReadTimeout   time.Duration `conf:"default:10s"`
			AcceptRate    int           `conf:"default:0"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "single node ledger",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Ledger Support

	// The foundation packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := logger.NewEvHandler(log, evts.Send)

	target, err := pow.ParseTarget(cfg.Mining.Target)
	if err != nil {
		return fmt.Errorf("parsing mining target: %w", err)
	}

	strg, err := store.NewFile(store.Paths{
		MinePath:   cfg.Node.MinePath,
		ChainPath:  cfg.Node.ChainPath,
		HashesPath: cfg.Node.HashesPath,
	})
	if err != nil {
		return fmt.Errorf("constructing store: %w", err)
	}

	// The ledger value represents the node and manages the chain of mined
	// blocks and provides an API for application support.
	ldgr, err := ledger.New(ledger.Config{
		Address:       cfg.Node.Address,
		Owner:         cfg.Node.Owner,
		Target:        target,
		MaxAttempts:   cfg.Mining.MaxAttempts,
		MaxDifficulty: cfg.Mining.MaxDifficulty,
		Store:         strg,
		EvHandler:     ev,
	})
	if err != nil {
		return err
	}

	ldgr.SetReceiving(cfg.Node.Receiving)
	ldgr.SetMineable(cfg.Node.Mineable)

	log.Infow("startup", "status", "ledger loaded", "length", ldgr.Length())

	// =========================================================================
	// Worker Pool Support

	poolMetrics, err := workerpool.NewMetrics("ledger", prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("registering pool metrics: %w", err)
	}

	// The worker pool runs every dispatched connection and every mining
	// request from the web api.
	pool, err := workerpool.New(cfg.Pool.Workers,
		workerpool.WithQueueCapacity(cfg.Pool.QueueCapacity),
		workerpool.WithMetrics(poolMetrics),
		workerpool.WithEvHandler(ev),
		workerpool.WithPanicHandler(func(workerID int, v any) {
			log.Errorw("worker pool", "status", "job panic", "worker", workerID, "ERROR", v)
		}),
	)
	if err != nil {
		return fmt.Errorf("constructing worker pool: %w", err)
	}
	defer pool.Shutdown()

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, prometheus.DefaultGatherer, ldgr.Validate)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 2)

	// =========================================================================
	// Start Dispatch Service

	dsp, err := dispatch.New(dispatch.Config{
		Addr:          cfg.Node.Address,
		Pool:          pool,
		PagesDir:      cfg.Dispatch.PagesDir,
		SleepDuration: cfg.Dispatch.SleepDuration,
		ReadTimeout:   cfg.Dispatch.ReadTimeout,
		AcceptRate:    cfg.Dispatch.AcceptRate,
		EvHandler:     ev,
	})
	if err != nil {
		return fmt.Errorf("constructing dispatcher: %w", err)
	}

	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()

	if ldgr.Receiving() {
		go func() {
			log.Infow("startup", "status", "dispatch started", "host", cfg.Node.Address)
			if err := dsp.Run(dispatchCtx, ldgr.Receiving); err != nil {
				serverErrors <- fmt.Errorf("dispatch: %w", err)
			}
		}()
	}

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Ledger:   ldgr,
		Pool:     pool,
		Evts:     evts,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Stop accepting connections, the pool finishes what was accepted.
		log.Infow("shutdown", "status", "shutdown dispatch")
		ldgr.SetReceiving(false)
		cancelDispatch()

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
