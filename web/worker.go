package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const shutdownGrace = 5 * time.Second

// Worker runs the HTTP surface under the supervisor, next to the room
// sessions.
type Worker struct {
	log    *slog.Logger
	server *http.Server
}

func NewWorker(log *slog.Logger, addr string, server *Server) *Worker {
	return &Worker{
		log: log,
		server: &http.Server{
			Addr:    addr,
			Handler: server.Router(),
		},
	}
}

func (w *Worker) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Log browser listening", "addr", w.server.Addr)
		if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	}
}
