package commands

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wlanrsn-go/pkg/link"
	"wlanrsn-go/pkg/metrics"
)

type statusSource interface {
	Status() []link.Status
}

type server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

func newServer(listen string, src statusSource, prom *metrics.PrometheusRecorder) *server {
	return &server{
		httpServer: &http.Server{
			Addr:              listen,
			Handler:           newRouter(src, prom),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log.With().Str("component", "http").Logger(),
	}
}

func newRouter(src statusSource, prom *metrics.PrometheusRecorder) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(src.Status())
	}).Methods("GET")
	if prom != nil {
		r.Handle("/metrics", prom.Handler()).Methods("GET")
	}
	return r
}

func (s *server) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(shutdownCtx)
}
