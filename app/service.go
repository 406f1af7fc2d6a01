// Package app wires configuration, storage, messaging and the HTTP
// surface into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	apibooking "github.com/shotfleet/shotfleet/api/booking"
	apidispatch "github.com/shotfleet/shotfleet/api/dispatch"
	apischedule "github.com/shotfleet/shotfleet/api/schedule"
	apitechnicians "github.com/shotfleet/shotfleet/api/technicians"
	"github.com/shotfleet/shotfleet/config"
	"github.com/shotfleet/shotfleet/core/dispatch"
	"github.com/shotfleet/shotfleet/core/dispatch/logging"
	"github.com/shotfleet/shotfleet/core/events"
	"github.com/shotfleet/shotfleet/core/fulfillment"
	coremetrics "github.com/shotfleet/shotfleet/core/metrics"
	"github.com/shotfleet/shotfleet/core/ranking"
	"github.com/shotfleet/shotfleet/core/repo"
	"github.com/shotfleet/shotfleet/core/schedule"
	"github.com/shotfleet/shotfleet/core/techstatus"
	"github.com/shotfleet/shotfleet/infra/logger"
	"github.com/shotfleet/shotfleet/infra/metrics"
	"github.com/shotfleet/shotfleet/infra/mqtt"
	"github.com/shotfleet/shotfleet/infra/storage"
	"github.com/shotfleet/shotfleet/internal/eventbus"
)

// repositories is the storage surface the service needs; both the
// in-memory store and the SQLite store satisfy it.
type repositories interface {
	repo.ProjectRepository
	repo.TechnicianRepository
	repo.IntervalRepository
	repo.OrderRepository
}

// Service owns every long-running component and their shared wiring.
type Service struct {
	Manager      *dispatch.AssignmentManager
	Machine      *fulfillment.Machine
	Reconciler   *fulfillment.Reconciler
	Availability *schedule.Availability
	Resolver     *schedule.Resolver
	Statuses     techstatus.Store
	Repos        repositories

	cfg      *config.Config
	bus      eventbus.EventBus
	log      logger.Logger
	notifier dispatch.Notifier
	sink     coremetrics.MetricsSink
	logStore logging.LogStore
	closers  []func() error
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	svc := &Service{cfg: cfg, log: logg, bus: eventbus.New()}

	if err := svc.initRepos(); err != nil {
		return nil, err
	}
	if err := svc.initNotifier(); err != nil {
		return nil, err
	}
	svc.initSink()
	if err := svc.initLogStore(); err != nil {
		return nil, err
	}

	svc.Resolver = schedule.NewResolver(svc.Repos)
	svc.Availability = schedule.NewAvailability(svc.Repos, svc.Repos, cfg.Schedule.SlotMinutes)

	engine := ranking.NewEngine(svc.Resolver)
	engine.Weights = ranking.Weights{
		Availability: cfg.Ranking.AvailabilityWeight,
		Distance:     cfg.Ranking.DistanceWeight,
		Reliability:  cfg.Ranking.ReliabilityWeight,
		SkillMatch:   cfg.Ranking.SkillWeight,
	}
	engine.DistanceFalloff = cfg.Ranking.DistanceFalloffKm
	engine.PreferredBoost = cfg.Ranking.PreferredBoost

	machine, err := fulfillment.NewMachine(svc.Repos, svc.Repos, logg, svc.bus, svc.sink)
	if err != nil {
		return nil, fmt.Errorf("fulfillment machine: %w", err)
	}
	svc.Machine = machine
	svc.Reconciler = fulfillment.NewReconciler(machine, svc.Repos, logg,
		time.Duration(cfg.Fulfillment.PendingTTLMinutes)*time.Minute)

	manager, err := dispatch.NewAssignmentManager(
		engine,
		svc.Resolver,
		svc.Repos,
		svc.Repos,
		svc.notifier,
		time.Duration(cfg.Dispatch.OfferTimeoutSeconds)*time.Second,
		cfg.Dispatch.MaxCandidates,
		svc.sink,
		svc.bus,
		logg,
	)
	if err != nil {
		return nil, fmt.Errorf("assignment manager: %w", err)
	}
	manager.SetLogStore(svc.logStore)
	svc.Statuses = techstatus.NewMemoryStore()
	manager.SetStatusStore(svc.Statuses)
	svc.Manager = manager
	return svc, nil
}

func (s *Service) initRepos() error {
	switch s.cfg.Storage.Backend {
	case "sqlite":
		store, err := storage.NewStore(s.cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("sqlite store: %w", err)
		}
		s.closers = append(s.closers, store.Close)
		s.Repos = store
	default:
		s.Repos = repo.NewMemoryStore()
	}
	return nil
}

func (s *Service) initNotifier() error {
	if s.cfg.MQTT.Broker == "" {
		s.log.Warnf("no MQTT broker configured, using mock notifier")
		s.notifier = mqtt.NewMockNotifier()
		return nil
	}
	client, err := mqtt.NewPahoClient(s.cfg.MQTT)
	if err != nil {
		return fmt.Errorf("mqtt client: %w", err)
	}
	s.closers = append(s.closers, func() error {
		client.Disconnect()
		return nil
	})
	s.notifier = client
	return nil
}

func (s *Service) initSink() {
	var sinks []coremetrics.MetricsSink
	if s.cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			s.log.Errorf("prom sink: %v", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	if s.cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			s.cfg.Metrics.InfluxURL, s.cfg.Metrics.InfluxToken,
			s.cfg.Metrics.InfluxOrg, s.cfg.Metrics.InfluxBucket))
	}
	switch len(sinks) {
	case 0:
		s.sink = coremetrics.NopSink{}
	case 1:
		s.sink = sinks[0]
	default:
		s.sink = metrics.NewMultiSink(sinks...)
	}
}

func (s *Service) initLogStore() error {
	var (
		store logging.LogStore
		err   error
	)
	switch s.cfg.Logging.Backend {
	case "sqlite":
		store, err = logging.NewSQLiteStore(s.cfg.Logging.Path)
	default:
		store, err = logging.NewJSONLStore(s.cfg.Logging.Path)
	}
	if err != nil {
		return fmt.Errorf("log store: %w", err)
	}
	s.logStore = store
	return nil
}

// Handler builds the HTTP mux for the service API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/booking/webhook", apibooking.NewWebhookHandler(s.Machine))
	mux.Handle("/api/booking/status", apibooking.NewStatusHandler(s.Machine))
	mux.Handle("/api/schedule/slots", apischedule.NewSlotsHandler(s.Availability))
	mux.Handle("/api/schedule/layout", apischedule.NewLayoutHandler(s.Resolver))
	mux.Handle("/api/technicians/status", apitechnicians.NewStatusHandler(s.Statuses, s.Availability))
	if s.cfg.API.LogsToken != "" {
		mux.Handle("/api/dispatch/logs", apidispatch.NewLogHandler(s.logStore, s.cfg.API.LogsToken))
	}
	return mux
}

// Run starts every component and blocks until the context is cancelled
// or a component fails.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	jobs := make(chan string, 16)
	g.Go(func() error {
		s.Manager.Run(ctx, jobs)
		return nil
	})

	// Feed staffing requests from fulfillment's job-created events.
	sub := s.bus.Subscribe()
	g.Go(func() error {
		for {
			select {
			case ev := <-sub:
				if jc, ok := ev.(events.JobCreatedEvent); ok {
					select {
					case jobs <- jc.ProjectID:
					case <-ctx.Done():
						return nil
					}
				}
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		s.Reconciler.Run(ctx, time.Duration(s.cfg.Fulfillment.SweepIntervalSeconds)*time.Second)
		return nil
	})

	g.Go(func() error {
		metrics.StartEventCollector(ctx, s.bus, s.sink)
		return nil
	})

	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: s.Handler()}
	g.Go(func() error {
		s.log.Infof("api listening on %s", s.cfg.API.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if s.cfg.Metrics.PrometheusEnabled {
		g.Go(func() error {
			return metrics.StartPromServer(ctx, fmt.Sprintf(":%d", s.cfg.Metrics.PrometheusPort))
		})
	}

	return g.Wait()
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if err := s.Manager.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
