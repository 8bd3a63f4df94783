// Package server assembles the HTTP service from configuration and runs it
// until its context is cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"meddatachat/internal/api"
	"meddatachat/internal/config"
	"meddatachat/internal/logging"
	"meddatachat/internal/service/ai"
	"meddatachat/internal/service/assistant"
	"meddatachat/internal/session"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	cfg      *config.Config
	provider string
	router   *gin.Engine
	sessions *session.Store
}

// New wires the session store, the model generator factory, the assistant
// service and the HTTP routes.
func New(cfg *config.Config) (*Server, error) {
	provider, provCfg, err := cfg.Provider()
	if err != nil {
		return nil, err
	}
	basic := cfg.BasicConfig

	factory := func(ctx context.Context, apiKey string) (assistant.Generator, error) {
		return ai.NewGenerator(ctx, provider, provCfg, apiKey)
	}
	svc := assistant.NewService(factory, assistant.Options{
		PrimaryModel:  provCfg.Model,
		FallbackModel: provCfg.FallbackModel,
		PreviewRows:   basic.PreviewRows,
		Timeout:       basic.RequestTimeout,
	})

	store := session.NewStore(basic.SessionTTL)
	handler := api.NewHandler(svc, store, []byte(basic.SessionSecret), api.Options{
		MaxUploadBytes: basic.MaxUploadBytes,
		DisplayRows:    basic.DisplayRows,
		PreviewRows:    basic.PreviewRows,
		ProviderLabel:  api.ProviderLabel(provider),
		SecureCookies:  basic.SecureCookies,
	})

	router := gin.New()
	router.Use(logging.Middleware(), gin.Recovery())
	router.MaxMultipartMemory = basic.MaxUploadBytes
	handler.RegisterRoutes(router)

	return &Server{cfg: cfg, provider: provider, router: router, sessions: store}, nil
}

func (s *Server) Handler() http.Handler { return s.router }

// Serve listens on the configured address and blocks until ctx is cancelled
// or the listener fails. The idle-session sweeper runs alongside.
func (s *Server) Serve(ctx context.Context) error {
	basic := s.cfg.BasicConfig
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    basic.ServerAddress,
		Handler: s.router,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.sessions.StartSweeper(egctx, basic.SessionSweepInterval)

	eg.Go(func() error {
		log.Info().
			Str("addr", basic.ServerAddress).
			Str("provider", s.provider).
			Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
