// Package app wires the configuration into a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/fieldassign/api"
	"github.com/kilianp07/fieldassign/config"
	"github.com/kilianp07/fieldassign/core/assign"
	coremetrics "github.com/kilianp07/fieldassign/core/metrics"
	coremqtt "github.com/kilianp07/fieldassign/core/mqtt"
	"github.com/kilianp07/fieldassign/core/runlog"
	"github.com/kilianp07/fieldassign/core/session"
	"github.com/kilianp07/fieldassign/infra/logger"
	"github.com/kilianp07/fieldassign/infra/metrics"
	"github.com/kilianp07/fieldassign/infra/mqtt"
	"github.com/kilianp07/fieldassign/internal/eventbus"
	"github.com/kilianp07/fieldassign/pkg/roster"
)

// Service orchestrates the session manager and its transports.
type Service struct {
	Sessions *session.Manager
	Store    runlog.Store

	cfg    *config.Config
	bus    *eventbus.Bus[session.RunEvent]
	client *mqtt.PahoClient
	feed   *mqtt.TableFeed
	log    logger.Logger
}

// Option customises New.
type Option func(*options)

type options struct {
	publisher coremqtt.Publisher
}

// WithPublisher replaces the MQTT broker connection, mainly for tests.
func WithPublisher(p coremqtt.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logg := logger.New("service")

	ro, err := roster.LoadOrDefault(cfg.Roster.Path)
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	store, err := runlog.Open(cfg.RunLog)
	if err != nil {
		return nil, fmt.Errorf("run log: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	engineOpts := cfg.Engine.Options()
	engineOpts.Log = logger.New("engine")
	bus := eventbus.New[session.RunEvent]()
	svc := &Service{Store: store, cfg: cfg, bus: bus, log: logg}
	svc.Sessions = session.NewManager(assign.NewEngine(engineOpts), ro, session.Options{
		Store: store,
		Sink:  sink,
		Bus:   bus,
		Log:   logger.New("sessions"),
	})

	pub := o.publisher
	if pub == nil && cfg.MQTT.Enabled {
		client, err := mqtt.NewPahoClient(cfg.MQTT, svc.applyRemote)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.client = client
		pub = client
	}
	if pub != nil {
		svc.feed = mqtt.NewTableFeed(pub, cfg.MQTT)
	}
	logg.Infof("service ready: %d staff, %d sites", len(ro.Staff), len(ro.Sites))
	return svc, nil
}

// applyRemote handles instructions received over MQTT.
func (s *Service) applyRemote(ctx context.Context, sessionID, text string) {
	if _, err := s.Sessions.Apply(ctx, sessionID, text); err != nil {
		s.log.Warnf("remote instruction for session %s: %v", sessionID, err)
	}
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	cfg := api.RouterConfig{
		Sessions:  s.Sessions,
		Runs:      s.Store,
		Token:     s.cfg.Server.Token,
		RateLimit: s.cfg.Server.RateLimit,
		Burst:     s.cfg.Server.Burst,
	}
	if s.feed != nil {
		cfg.OnDelete = func(ctx context.Context, id string) {
			if err := s.feed.ClearSession(ctx, id); err != nil {
				s.log.Warnf("clear retained table of %s: %v", id, err)
			}
		}
	}
	return api.NewRouter(cfg)
}

// Run starts the HTTP API, the metrics endpoint and the MQTT feed, and blocks
// until the context is cancelled or one of them fails.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if s.feed != nil {
		done := s.feed.Forward(gctx, s.bus)
		g.Go(func() error {
			<-done
			return nil
		})
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		g.Go(func() error {
			if err := metrics.StartPromServer(gctx, addr); err != nil {
				return fmt.Errorf("prom server: %w", err)
			}
			return nil
		})
	}

	srv := &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		s.log.Infof("HTTP API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.Server.ShutdownSeconds)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.client != nil {
		s.client.Disconnect()
	}
	return s.Store.Close()
}
