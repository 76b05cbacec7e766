// Package stubd is a development emulator of the Zazzle Agent backend: it
// speaks the documented HTTP and stream contract so the client can be
// developed and demoed without the real pipeline. It simulates pipeline
// progress; it does not scrape Reddit or create products anywhere.
package stubd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/zazzle-agent/taskwatch/internals/env"
)

type Config struct {
	Logger *slog.Logger

	// DataDir holds the sqlite database and defaults to the user cache dir.
	DataDir string

	// StepInterval and PersistLag tune the simulated pipeline.
	StepInterval time.Duration
	PersistLag   time.Duration
}

type Server struct {
	Env    *env.EnvStruct
	logger *slog.Logger

	store      *store
	hub        *hub
	runner     *runner
	subreddit  string
	httpServer *http.Server
}

// ResolveDataDir picks the stubd data directory: the explicit value first,
// then the environment, then the user cache dir. The directory is created.
func ResolveDataDir(explicit string) (string, error) {
	dataDir := explicit
	if dataDir == "" {
		dataDir = env.Get().DATA_DIR
	}
	if dataDir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(cacheDir, "taskwatch")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}
	return dataDir, nil
}

func New(cfg Config) (*Server, error) {
	envs := env.Get()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dataDir, err := ResolveDataDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	store, err := newStore(filepath.Join(dataDir, "stubd.db"))
	if err != nil {
		return nil, err
	}

	hub := newHub(logger)

	return &Server{
		Env:       envs,
		logger:    logger,
		store:     store,
		hub:       hub,
		runner:    newRunner(store, hub, logger, cfg.StepInterval, cfg.PersistLag, envs.SUBREDDIT),
		subreddit: envs.SUBREDDIT,
	}, nil
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.Env.STUB_ADDR)
	if err != nil {
		return err
	}
	s.logger.Info("stubd listening", "addr", s.Env.STUB_ADDR)
	server := &http.Server{
		Handler: s.Router(),
	}
	s.httpServer = server
	err = server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.store.Close(); err == nil {
		err = closeErr
	}
	return err
}
