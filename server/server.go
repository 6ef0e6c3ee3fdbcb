// Package server exposes the local control API: status, the play button,
// pending/score commands, the lyric offset and prometheus metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"SyncFM/core/playback"
	"SyncFM/display"
	"SyncFM/logger"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the part of the reconciler the control API drives. Every call
// is made on the playback loop.
type Engine interface {
	Snapshot() playback.Snapshot
	RequestResume() error
	SendPending(value int) error
	SendScore(score int) error
	SetLyricOffset(offset float64)
}

// Caller runs fn on the goroutine that owns the engine.
type Caller interface {
	Call(ctx context.Context, fn func()) error
}

// StatusSource provides what the display currently shows.
type StatusSource interface {
	Status() display.Status
}

// Handler 本地控制接口
type Handler struct {
	engine   Engine
	loop     Caller
	status   StatusSource
	gatherer prometheus.Gatherer
}

// NewHandler creates the control API. status and gatherer may be nil.
func NewHandler(engine Engine, loop Caller, status StatusSource, gatherer prometheus.Gatherer) *Handler {
	return &Handler{engine: engine, loop: loop, status: status, gatherer: gatherer}
}

// Router builds the gorilla/mux router.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/api/status", h.StatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/resume", h.ResumeHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/pending/{value}", h.PendingHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/score/{value}", h.ScoreHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/lyric/offset", h.LyricOffsetHandler).Methods(http.MethodPut, http.MethodOptions)

	if h.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return router
}

// Serve listens on addr until ctx is done.
func (h *Handler) Serve(ctx context.Context, addr string) error {
	// 设置服务器超时
	srv := &http.Server{
		Addr:         addr,
		Handler:      h.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("control API listening", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("control API shutdown", logger.ErrorField(err))
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
