package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pixelclimber/server"
	"pixelclimber/statsdb"
	"pixelclimber/tuning"
)

// pixelclimber 入口：加载调参，启动 HTTP + WebSocket 服务与房间管理器
func main() {
	var (
		addr      string
		tuningArg string
		seed      int64
		logFile   string
		traceDir  string
		statsSpec string
		webDir    string
	)
	flag.StringVar(&addr, "addr", ":8080", "server listen address, e.g. :8080")
	flag.StringVar(&tuningArg, "tuning", "", "tuning file (.yaml/.yml/.toml); built-in defaults when empty")
	flag.Int64Var(&seed, "seed", 0, "world seed; overrides the tuning file when non-zero")
	flag.StringVar(&logFile, "log", "", "log file; overrides the tuning file when set")
	flag.StringVar(&traceDir, "trace", "", "directory for zstd JSONL generation traces; disabled when empty")
	flag.StringVar(&statsSpec, "stats", "", "run summary database, e.g. sqlite:data/stats.db or postgres://...")
	flag.StringVar(&webDir, "web", "web", "static files served at /")
	flag.Parse()

	cfg := tuning.Defaults()
	if tuningArg != "" {
		var err error
		if cfg, err = tuning.Load(tuningArg); err != nil {
			panic(err)
		}
	}
	if seed != 0 {
		cfg.Seed = seed
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := server.InitLogger(cfg.Log); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	var stats *statsdb.DB
	if statsSpec != "" {
		var err error
		if stats, err = statsdb.Open(statsSpec, server.Log); err != nil {
			server.Log.Fatalf("open stats db: %v", err)
		}
		defer stats.Close()
	}

	rm := server.NewRoomManager(cfg, server.ManagerOptions{TraceDir: traceDir, Stats: stats})
	// 先预创建默认房间，便于快速试跑
	if _, err := rm.GetOrCreateRoom(cfg.Server.DefaultRoom); err != nil {
		server.Log.Fatalf("create default room: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", rm.HandleWS)
	mux.Handle("/", http.FileServer(http.Dir(webDir)))
	// 管理与监控接口
	mux.HandleFunc("/admin/config", rm.HandleAdminConfig)
	mux.HandleFunc("/admin/runs", rm.HandleRuns)
	mux.HandleFunc("/metrics", rm.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		server.Log.Infof("pixelclimber listening on %s; open http://localhost%v/", addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）：停止接入 → 停止房间（写入本局摘要）→ 关闭统计库
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		server.Log.Warnf("http shutdown: %v", err)
	}
	rm.Close()
}
