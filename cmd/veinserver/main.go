package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"veinmine.ai/internal/metrics"
	"veinmine.ai/internal/persistence/indexdb"
	persistlog "veinmine.ai/internal/persistence/log"
	"veinmine.ai/internal/persistence/snapshot"
	"veinmine.ai/internal/sim/catalogs"
	"veinmine.ai/internal/sim/tuning"
	"veinmine.ai/internal/sim/vein"
	"veinmine.ai/internal/sim/world"
	"veinmine.ai/internal/transport/observer"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configDir   = flag.String("configs", "./configs", "config directory")
		tuningPath  = flag.String("tuning", "", "tuning.yaml path (default: <configs>/tuning.yaml)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		worldID     = flag.String("world", "WORLD_1", "world id")
		seed        = flag.Int64("seed", 0, "world seed (0: use tuning.yaml)")
		disableDB   = flag.Bool("disable_db", false, "disable sqlite run index")
		logSteps    = flag.Bool("journal_steps", false, "write RUN_STEP lines to the run journal")
		allowRemote = flag.Bool("observe_remote", false, "allow non-loopback observer websocket clients")
		useSnapshot = flag.Bool("snapshot", true, "resume from the latest snapshot and write one on shutdown")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[veinserver] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tpath := *tuningPath
	if tpath == "" {
		tpath = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tpath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}

	cfg := world.ConfigFromTuning(*worldID, tune)
	if *seed != 0 {
		cfg.Seed = *seed
	}
	cfg.Logger = logger

	snapDir := filepath.Join(*dataDir, "snapshots")
	var snap *snapshot.SnapshotV1
	if *useSnapshot {
		path, err := snapshot.Latest(snapDir)
		if err != nil {
			logger.Fatalf("find snapshot: %v", err)
		}
		if path != "" {
			s, err := snapshot.ReadSnapshot(path)
			if err != nil {
				logger.Fatalf("read snapshot %s: %v", path, err)
			}
			snap = &s
			cfg.StartTick = s.Header.Tick
			logger.Printf("resuming from %s tick=%d chunks=%d agents=%d", path, s.Header.Tick, len(s.Chunks), len(s.Agents))
		}
	}

	w, err := world.New(cfg, cats)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	if snap != nil {
		if err := w.ImportSnapshot(*snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
	}
	p := w.Pacing()
	logger.Printf("world=%s seed=%d tick_hz=%d budget=%s batch=%d..%d step=%d auto_adjust=%v",
		cfg.ID, cfg.Seed, tune.TickRateHz, p.Budget, p.MinBatch, p.MaxBatch, p.BatchStep, p.AutoAdjust)

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("mkdir data: %v", err)
	}
	mirror, err := buildMirror(*dataDir, logger)
	if err != nil {
		logger.Fatalf("journal mirror: %v", err)
	}
	if mirror != nil {
		defer mirror.Close()
	}
	journal := persistlog.NewRunJournal(*dataDir, *logSteps, logger)
	if mirror != nil {
		journal.OnSegmentClosed(mirror.Enqueue)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			logger.Printf("close journal: %v", err)
		}
	}()

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer func() {
			if err := idx.Close(); err != nil {
				logger.Printf("close index db: %v", err)
			}
		}()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index catalogs: %v", err)
		}
	} else {
		logger.Printf("sqlite run index disabled (-disable_db)")
	}

	collector := metrics.New()
	collector.WatchWorld(w.Metrics)
	if idx != nil {
		collector.WatchIndex(idx.Stats)
	}
	if mirror != nil {
		collector.WatchMirror(mirror.Stats)
	}

	feed := observer.NewServer(logger)
	feed.AllowRemote = *allowRemote

	obs := vein.Observers{journal, collector, feed}
	if idx != nil {
		obs = append(obs, idx)
	}
	w.SetObserver(obs)

	ctx, cancel := signalContext()
	defer cancel()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	h := &api{w: w, log: logger}
	if idx != nil {
		h.idx = idx
	}
	mux := http.NewServeMux()
	h.routes(mux, collector)
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/v1/observe", feed.WSHandler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-worldDone

	if *useSnapshot {
		out := w.ExportSnapshot()
		path := filepath.Join(snapDir, snapshot.FileName(out.Header.Tick))
		if err := snapshot.WriteSnapshot(path, out); err != nil {
			logger.Printf("write snapshot: %v", err)
		} else {
			logger.Printf("snapshot written %s chunks=%d agents=%d", path, len(out.Chunks), len(out.Agents))
		}
	}

	if idx != nil {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		if err := idx.Flush(ctx2); err != nil {
			logger.Printf("flush index db: %v", err)
		}
		cancel2()
	}
	if err := journal.Err(); err != nil {
		logger.Printf("journal: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
