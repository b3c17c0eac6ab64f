package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	planapi "github.com/kilianp07/evopt/api/plan"
	"github.com/kilianp07/evopt/api/vehicles"
	"github.com/kilianp07/evopt/config"
	"github.com/kilianp07/evopt/core/forecast"
	coremetrics "github.com/kilianp07/evopt/core/metrics"
	"github.com/kilianp07/evopt/core/optim"
	"github.com/kilianp07/evopt/core/planner"
	"github.com/kilianp07/evopt/core/planner/history"
	"github.com/kilianp07/evopt/core/registry"
	"github.com/kilianp07/evopt/infra/logger"
	"github.com/kilianp07/evopt/infra/metrics"
	"github.com/kilianp07/evopt/infra/mqtt"
	"github.com/kilianp07/evopt/internal/eventbus"
)

// Service wires the registry, the plan manager and the boundary adapters
// from one configuration.
type Service struct {
	Manager  *planner.PlanManager
	Registry *registry.Registry

	bus       *eventbus.Bus[any]
	sink      coremetrics.MetricsSink
	publisher *mqtt.PahoPublisher
	log       logger.Logger

	apiAddr        string
	apiToken       string
	promEnabled    bool
	promAddr       string
	replanInterval time.Duration
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	reg, err := registry.New(cfg.Fleet(), cfg.Horizon, logger.New("registry"))
	if err != nil {
		return nil, fmt.Errorf("vehicle registry: %w", err)
	}
	fc, err := forecast.NewBuilder(cfg.Horizon, cfg.Forecast.Defaults,
		cfg.Forecast.MinStepHours, cfg.Forecast.MaxStepHours, logger.New("forecast"))
	if err != nil {
		return nil, fmt.Errorf("forecast builder: %w", err)
	}
	builder, err := optim.NewBuilder(cfg.Planner.Optimizer, logger.New("optim"))
	if err != nil {
		return nil, fmt.Errorf("model builder: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	bus := eventbus.New[any]()

	var pub *mqtt.PahoPublisher
	if cfg.MQTT.Enabled() {
		pub, err = mqtt.NewPahoPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
	}

	mgr, err := planner.NewPlanManager(reg, fc, builder, cfg.Plant, cfg.Planner, nil, sink, bus, logger.New("planner"))
	if err != nil {
		return nil, fmt.Errorf("plan manager: %w", err)
	}
	if pub != nil {
		mgr.SetPublisher(pub)
	}

	store, err := history.NewStore(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}
	mgr.SetHistoryStore(store)

	return &Service{
		Manager:        mgr,
		Registry:       reg,
		bus:            bus,
		sink:           sink,
		publisher:      pub,
		log:            logg,
		apiAddr:        cfg.API.Addr,
		apiToken:       cfg.API.Token,
		promEnabled:    cfg.Metrics.PrometheusEnabled(),
		promAddr:       cfg.Metrics.PrometheusAddr,
		replanInterval: time.Duration(cfg.Planner.ReplanIntervalSeconds) * time.Second,
	}, nil
}

// Run serves the HTTP API and blocks until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.replanInterval > 0 {
		sched, err := planner.NewScheduler(s.Manager, s.replanInterval, logger.New("scheduler"))
		if err != nil {
			return err
		}
		go sched.Run(ctx)
	}

	srv := &http.Server{Addr: s.apiAddr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	s.log.Infof("api listening on %s", s.apiAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler returns the HTTP API of the service, for embedding in an existing
// server or in tests.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	vh := vehicles.NewHandler(s.Registry, s.bus, s.apiToken)
	mux.Handle("/api/vehicles", vh)
	mux.Handle("/api/vehicles/", vh)
	mux.Handle("/api/plan/", planapi.NewHandler(s.Manager, s.apiToken))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			s.log.Errorf("write healthz: %v", err)
		}
	})
	return mux
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	return s.Manager.Close()
}
