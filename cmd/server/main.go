package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/wfunc/initiative-tracker/internal/api"
	"github.com/wfunc/initiative-tracker/internal/config"
	"github.com/wfunc/initiative-tracker/internal/database"
	"github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/logger"
	"github.com/wfunc/initiative-tracker/internal/service"
	ws "github.com/wfunc/initiative-tracker/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Build information, set with -ldflags.
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server owns the process components and their shutdown.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	db         *gorm.DB
	hub        *ws.Hub
	router     *api.Router
	httpServer *http.Server

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to config.yaml")
		showVersion = flag.Bool("version", false, "print version and exit")
		showHelp    = flag.Bool("help", false, "print usage and exit")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	setupSystem(&cfg.System)

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("server failed to start", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start opens the database, builds the router and begins serving.
func (s *Server) Start() error {
	s.logger.Info("starting initiative tracker",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initDatabase(); err != nil {
		return err
	}

	services := service.NewServices(s.db, service.ConfigFrom(s.cfg), logger.WithModule("initiative"))

	if s.cfg.WebSocket.Enabled {
		s.hub = ws.NewHub(ws.OptionsFrom(s.cfg.WebSocket), logger.WithModule("websocket"))
		s.goRun(s.hub.Run)
	}

	s.router = api.NewRouter(s.db, services, s.hub, s.cfg, logger.WithModule("http"))
	s.goRun(s.router.Run)

	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", zap.Error(err))
			s.cancel()
		}
	}()

	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("configuration changed, reloading")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("server started",
		zap.String("http", s.cfg.Server.Addr()),
		zap.Bool("websocket", s.hub != nil),
		zap.String("config", config.ConfigFileUsed()),
	)
	return nil
}

func (s *Server) goRun(run func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run(s.ctx)
	}()
}

func (s *Server) initDatabase() error {
	if err := database.Init(&s.cfg.Database); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "open database")
	}
	s.db = database.GetDB()

	if s.cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "migrate database")
		}
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	if err := database.Ping(ctx, s.db); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "ping database")
	}
	return nil
}

// WaitForShutdown blocks until a stop signal arrives or the server fails.
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		s.logger.Info("signal received", zap.String("signal", sig.String()))
	case <-s.ctx.Done():
	}
}

// Shutdown drains HTTP requests, stops background work and closes the
// database within server.shutdown_timeout.
func (s *Server) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown incomplete", zap.Error(err))
		}
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		return errors.New(errors.ErrTimeout, "shutdown timed out")
	}

	if err := database.Close(); err != nil {
		s.logger.Error("close database", zap.Error(err))
	}
	logger.Sync()
	return nil
}

// reloadConfig applies the settings that can change without a restart.
func (s *Server) reloadConfig(newCfg *config.Config) {
	logger.SetLevel(newCfg.Log.Level)
	s.logger.Info("configuration reloaded", zap.String("log_level", newCfg.Log.Level))
}

func setupSystem(cfg *config.SystemConfig) {
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		}
	}
	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
}

func printVersion() {
	fmt.Printf("initiative-tracker %s\n", Version)
	fmt.Printf("built:  %s\n", BuildTime)
	fmt.Printf("commit: %s\n", GitCommit)
	fmt.Printf("go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func printHelp() {
	fmt.Println("initiative-tracker server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  initiative-server [options]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  INITIATIVE_<SECTION>_<KEY> overrides any config key, e.g. INITIATIVE_SERVER_PORT=9090")
}
