// Package app wires the reminder engine from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/kilianp07/fleetremind/api/reminders"
	"github.com/kilianp07/fleetremind/config"
	"github.com/kilianp07/fleetremind/core/channel"
	"github.com/kilianp07/fleetremind/core/deliverylog"
	"github.com/kilianp07/fleetremind/core/dispatch"
	"github.com/kilianp07/fleetremind/core/events"
	coremetrics "github.com/kilianp07/fleetremind/core/metrics"
	coremon "github.com/kilianp07/fleetremind/core/monitoring"
	"github.com/kilianp07/fleetremind/core/orchestrator"
	"github.com/kilianp07/fleetremind/core/sanitize"
	"github.com/kilianp07/fleetremind/core/scanner"
	"github.com/kilianp07/fleetremind/core/schedule"
	"github.com/kilianp07/fleetremind/core/store"
	"github.com/kilianp07/fleetremind/core/store/memory"
	"github.com/kilianp07/fleetremind/core/template"
	"github.com/kilianp07/fleetremind/infra/amqp"
	"github.com/kilianp07/fleetremind/infra/channel/emailjs"
	"github.com/kilianp07/fleetremind/infra/channel/telegram"
	"github.com/kilianp07/fleetremind/infra/channel/whatsapp"
	"github.com/kilianp07/fleetremind/infra/logger"
	"github.com/kilianp07/fleetremind/infra/metrics"
	"github.com/kilianp07/fleetremind/infra/monitoring"
	"github.com/kilianp07/fleetremind/infra/mqtt"
	"github.com/kilianp07/fleetremind/infra/postgres"
	"github.com/kilianp07/fleetremind/infra/sqlite"
	"github.com/kilianp07/fleetremind/internal/eventbus"
)

// Backend is what every store implementation provides.
type Backend interface {
	store.Store
	store.DeliveryLogStore
	store.Seeder
}

// Service owns the engine and its outer surfaces.
type Service struct {
	Orchestrator *orchestrator.Orchestrator
	Store        Backend
	Logs         store.DeliveryLogStore
	// Observer fans every event out to the log, the bus and the brokers.
	Observer events.Observer
	Bus      *eventbus.TypedBus[events.Event]

	cfg     *config.Config
	log     logger.Logger
	monitor coremon.Monitor
	closers []func() error
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (svc *Service, err error) {
	logger.SetLevel(cfg.Logging.Level)
	s := &Service{cfg: cfg, log: logger.New("service"), Bus: eventbus.NewTyped[events.Event]()}
	s.closers = append(s.closers, func() error { s.Bus.Close(); return nil })
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	s.monitor = mon

	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	s.Store = st
	s.closers = append(s.closers, st.Close)
	if cfg.Store.SeedFile != "" {
		seed, err := store.LoadSeed(cfg.Store.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		if err := seed.Apply(context.Background(), st); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	logs, err := deliverylog.Open(cfg.DeliveryLog, st)
	if err != nil {
		return nil, err
	}
	s.Logs = logs
	if cfg.DeliveryLog.Backend != deliverylog.BackendStore {
		s.closers = append(s.closers, logs.Close)
	}

	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	senders, err := newSenders(cfg.Channels)
	if err != nil {
		return nil, err
	}
	loc := cfg.App.Location()
	settings := channel.NewSettings(st, cfg.Channels.System())
	renderer := template.NewRenderer(template.Config{
		Company:        cfg.App.Company,
		Locale:         cfg.App.Locale,
		SubjectPattern: cfg.App.SubjectPattern,
		Location:       loc,
	})
	recorder := deliverylog.NewRecorder(logs, st, logger.New("deliverylog"))
	dispatcher := dispatch.New(senders, settings, renderer, recorder, dispatch.Options{
		Vehicles:      st,
		Documents:     st,
		Metrics:       sink,
		Logger:        logger.New("dispatch"),
		MaxConcurrent: cfg.Schedule.MaxConcurrent,
	})
	scan := scanner.New(scanner.Config{
		Marker:   cfg.App.AutoMarker,
		Defaults: scanner.Defaults{Email: cfg.App.DefaultEmail, WhatsApp: cfg.App.DefaultWhatsApp},
	}, scanner.Sources{Reminders: st, Documents: st, Vehicles: st, Contacts: st}, settings, logger.New("scanner"))
	sanitizer := sanitize.New(sanitize.Config{
		SenderEmail:  cfg.App.SenderEmail,
		DefaultEmail: cfg.App.DefaultEmail,
		Settings:     settings,
	}, st, st, logger.New("sanitize"))

	s.Orchestrator = orchestrator.New(orchestrator.Config{
		SendInterval: cfg.Schedule.SendInterval(),
		Location:     loc,
	}, orchestrator.Deps{
		Sanitizer:  sanitizer,
		Scanner:    scan,
		Resolver:   schedule.NewResolver(st, logger.New("schedule")),
		Dispatcher: dispatcher,
		Reminders:  st,
		Logs:       logs,
		Metrics:    sink,
		Monitor:    mon,
		Logger:     logger.New("orchestrator"),
	})

	obs := events.Multi{events.LogObserver{Log: logger.New("events")}, events.BusObserver{Bus: s.Bus}}
	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewEventPublisher(cfg.MQTT, mon)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		obs = append(obs, pub)
		s.closers = append(s.closers, func() error { pub.Disconnect(); return nil })
	}
	if cfg.AMQP.URL != "" {
		pub, err := amqp.NewEventPublisher(cfg.AMQP, mon)
		if err != nil {
			return nil, fmt.Errorf("amqp publisher: %w", err)
		}
		obs = append(obs, pub)
		s.closers = append(s.closers, pub.Close)
	}
	s.Observer = obs
	return s, nil
}

func openStore(cfg config.StoreConfig) (Backend, error) {
	switch cfg.Backend {
	case config.StoreSQLite:
		st, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.StorePostgres:
		st, err := postgres.Open(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.StoreMemory, "":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %s", cfg.Backend)
	}
}

func newSenders(cfg config.ChannelsConfig) ([]channel.Sender, error) {
	wa, err := whatsapp.New(cfg.WhatsAppGateway())
	if err != nil {
		return nil, fmt.Errorf("whatsapp sender: %w", err)
	}
	return []channel.Sender{
		emailjs.New(cfg.EmailJS()),
		wa,
		telegram.New(cfg.TelegramBot()),
	}, nil
}

// RunOnce runs a single daily cycle.
func (s *Service) RunOnce(ctx context.Context) (orchestrator.Report, error) {
	return s.Orchestrator.RunDailyCheck(ctx, s.Observer)
}

// Run schedules the daily cycle and serves the API and metrics endpoints
// until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.cfg.App.Location()))
	if _, err := c.AddFunc(s.cfg.Schedule.Cron, func() { s.cycle(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", s.cfg.Schedule.Cron, err)
	}
	c.Start()
	s.log.Infof("daily check scheduled at %q (%s)", s.cfg.Schedule.Cron, s.cfg.App.Timezone)

	var wg sync.WaitGroup
	if s.cfg.Schedule.RunOnStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.cycle(ctx)
		}()
	}
	if s.cfg.HTTP.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.serveAPI(ctx); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.StartPromServer(ctx, addr, logger.New("metrics")); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	<-ctx.Done()
	<-c.Stop().Done()
	wg.Wait()
	return nil
}

func (s *Service) cycle(ctx context.Context) {
	rep, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, orchestrator.ErrCycleInProgress):
		s.log.Warnf("daily check skipped: %v", err)
	case err != nil:
		s.log.Errorf("daily check: %v", err)
	default:
		s.log.Infow("daily check done", map[string]any{
			"cycle_id":  rep.CycleID,
			"due":       rep.Due,
			"delivered": rep.Delivered,
			"failed":    rep.Failed,
		})
	}
}

// Handler returns the operator API.
func (s *Service) Handler() http.Handler {
	if strings.ToLower(os.Getenv("APP_ENV")) != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := reminders.NewHandler(s.Orchestrator, s.Logs, s.Observer, logger.New("api"))
	return reminders.NewRouter(h, s.cfg.HTTP.Token)
}

func (s *Service) serveAPI(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("api server shutdown: %v", err)
		}
		cancel()
	}()
	s.log.Infof("operator API on %s", s.cfg.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases resources held by the service, most recent first.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	if s.monitor != nil {
		s.monitor.Flush(time.Duration(s.cfg.Sentry.FlushTimeoutMS) * time.Millisecond)
	}
	return errors.Join(errs...)
}
