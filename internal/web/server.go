package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Farengier/gatewayd-console/internal/signal"
	log "github.com/sirupsen/logrus"
)

type Config interface {
	Addr() string
	WriteTimeout() time.Duration
	ReadTimeout() time.Duration
}

// Start serves h until shutdown. It blocks, run it through signal.Run.
func Start(cfg Config, h http.Handler) {
	log.Infof("[Web] Starting server on %s", cfg.Addr())

	bctx, cncl := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:      h,
		Addr:         cfg.Addr(),
		WriteTimeout: cfg.WriteTimeout(),
		ReadTimeout:  cfg.ReadTimeout(),
		BaseContext: func(_ net.Listener) context.Context {
			return bctx
		},
	}

	signal.OnShutdown(func() error {
		log.Info("[Web] Shutdown server")
		cncl()
		err := srv.Shutdown(context.Background())
		if err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		return nil
	})
	err := srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Errorf("[Web] server stopped: %s", err)
		signal.Shutdown()
	}
}
