// Package client wires the playback engine to its collaborators and runs one
// listening session.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"SyncFM/cache"
	"SyncFM/config"
	"SyncFM/core/latency"
	"SyncFM/core/lyric"
	"SyncFM/core/playback"
	"SyncFM/core/player"
	"SyncFM/core/session"
	"SyncFM/core/spectrum"
	"SyncFM/display"
	"SyncFM/logger"
	"SyncFM/metrics"
	"SyncFM/model"
	"SyncFM/server"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const loopBuffer = 256

// Options are the process-level settings that are not part of Config.
type Options struct {
	EnvFile string       // watched for runtime changes when non-empty
	Out     io.Writer    // console output, stdout when nil
	Latency LatencyStore // overrides the redis latency cache
}

// LatencyStore keeps the last latency a session ended with.
type LatencyStore interface {
	Save(ctx context.Context, serverURL string, seconds float64) error
}

// Session is one running client.
type Session struct {
	ID         string
	cfg        *config.Config
	loop       *playback.Loop
	rec        *playback.Reconciler
	channel    *session.Channel
	player     *player.StreamPlayer
	console    *display.Console
	annotator  *lyric.Annotator
	estimator  *latency.Estimator
	latencyDB  LatencyStore
	controlAPI *server.Handler
	envFile    string
}

// Run connects to the session server and blocks until ctx is done or the
// connection is lost. A lost connection is returned as an error.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	s, err := New(ctx, cfg, opts)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// New builds a session and dials the server.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Session, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	s := &Session{
		ID:      uuid.New().String(),
		cfg:     cfg,
		loop:    playback.NewLoop(loopBuffer),
		envFile: opts.EnvFile,
	}
	if opts.Latency != nil {
		s.latencyDB = opts.Latency
	}
	logger.Info("starting session",
		logger.String("session", s.ID),
		logger.String("server", cfg.ServerURL),
		logger.String("stream", cfg.StreamBaseURL))

	m := metrics.DefaultMetrics
	// 每个会话都从初始值开始，上次学到的值只用于诊断
	s.estimator = latency.New(cfg.LatencyInitial, cfg.LatencyStep, cfg.LatencyCeiling, m)

	var lineCache lyric.LineCache
	if cfg.RedisEnabled() {
		if err := cache.ConnectRedis(cfg); err != nil {
			// 缓存只是加速，连不上也继续
			logger.Warn("redis unavailable, continuing without cache", logger.ErrorField(err))
		} else {
			if s.latencyDB == nil {
				s.latencyDB = cache.NewLatencyCache(cache.RedisClient)
			}
			lineCache = cache.NewFuriganaCache(cache.RedisClient)
		}
	}

	if cfg.Furigana {
		annotOpts := []lyric.Option{lyric.WithMetrics(m)}
		if lineCache != nil {
			annotOpts = append(annotOpts, lyric.WithLineCache(lineCache))
		}
		s.annotator = lyric.NewAnnotator(lyric.LoadKagome, annotOpts...)
	}

	// signals arrive on the fetch goroutine and are replayed on the loop
	s.player = player.New(player.Signals{
		DataLoaded: func(src string) {
			s.loop.Post(func() { s.rec.OnDataLoaded(src) })
		},
		SourceError: func(src string) {
			s.loop.Post(func() { s.rec.OnSourceError(src) })
		},
	}, player.WithAutoplay(cfg.Autoplay))

	s.console = display.NewConsole(opts.Out)
	vis := spectrum.NewVisualizer(s.player, spectrum.New(cfg.FFTSize))

	header := http.Header{}
	header.Set("X-Session-Id", s.ID)
	ch, err := session.Dial(ctx, cfg.ServerURL, header)
	if err != nil {
		cache.CloseRedis()
		return nil, fmt.Errorf("connect to session server: %w", err)
	}
	s.channel = ch

	s.rec = playback.NewReconciler(ctx, playback.Deps{
		Scheduler:  s.loop,
		Player:     s.player,
		Display:    s.console,
		Commander:  ch,
		Latency:    s.estimator,
		Annotator:  s.annotator,
		Visualizer: vis,
		Metrics:    m,
	}, playback.Options{
		StreamBaseURL: cfg.StreamBaseURL,
		RetryDelay:    cfg.RetryDelay,
		LyricOffset:   cfg.LyricOffset,
	})

	if cfg.ControlAddr != "" {
		s.controlAPI = server.NewHandler(s.rec, s.loop, s.console, prometheus.DefaultGatherer)
	}
	return s, nil
}

// Run drives the session until ctx is done or the connection fails.
func (s *Session) Run(ctx context.Context) error {
	defer s.shutdown()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.loop.Run(gctx)
	})

	if s.annotator != nil {
		s.annotator.Start(gctx)
	}

	g.Go(func() error {
		err := s.channel.Run(gctx, func(ev model.Event) {
			s.loop.Post(func() { s.rec.HandleEvent(ev) })
		})
		if err != nil {
			s.loop.Post(func() { s.rec.Disconnect(err) })
			// 给循环一点时间把断开状态显示出来
			s.loop.Call(context.Background(), func() {})
			return fmt.Errorf("session ended: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.rec.RunTicker(gctx, s.cfg.TickInterval)
	})

	if s.controlAPI != nil {
		g.Go(func() error {
			if err := s.controlAPI.Serve(gctx, s.cfg.ControlAddr); err != nil {
				// 控制接口失败不影响播放
				logger.Error("control API stopped", logger.ErrorField(err))
			}
			return nil
		})
	}

	if s.envFile != "" {
		if _, err := os.Stat(s.envFile); err == nil {
			g.Go(func() error {
				if err := config.Watch(gctx, s.envFile, s.applyConfig); err != nil {
					logger.Warn("config watch stopped", logger.ErrorField(err))
				}
				return nil
			})
		}
	}

	return g.Wait()
}

// applyConfig applies the settings that may change while a session runs.
func (s *Session) applyConfig(cfg *config.Config) {
	logger.SetLevel(logger.LogLevel(cfg.LogLevel))
	offset := cfg.LyricOffset
	s.loop.Post(func() { s.rec.SetLyricOffset(offset) })
	logger.Info("configuration reloaded",
		logger.Float64("lyricOffset", offset),
		logger.String("logLevel", cfg.LogLevel))
}

func (s *Session) shutdown() {
	s.player.Close()
	s.channel.Close()
	if s.latencyDB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.latencyDB.Save(ctx, s.cfg.ServerURL, s.estimator.Value()); err != nil {
			logger.Warn("failed to save learned latency", logger.ErrorField(err))
		}
		cancel()
	}
	if err := cache.CloseRedis(); err != nil {
		logger.Warn("close redis", logger.ErrorField(err))
	}
	logger.Info("session closed", logger.String("session", s.ID))
}
