package tripmanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/auth"
	"github.com/viant/tripmanager/service/auth/jwt"
	"github.com/viant/tripmanager/service/coordinator"
	"github.com/viant/tripmanager/service/dao"
	daofs "github.com/viant/tripmanager/service/dao/instance/fs"
	daomemory "github.com/viant/tripmanager/service/dao/instance/memory"
	"github.com/viant/tripmanager/service/event"
	"github.com/viant/tripmanager/service/host"
	"github.com/viant/tripmanager/service/index"
	imemory "github.com/viant/tripmanager/service/index/memory"
	"github.com/viant/tripmanager/service/index/sqlite"
	"github.com/viant/tripmanager/service/messaging"
	mfs "github.com/viant/tripmanager/service/messaging/fs"
	mmemory "github.com/viant/tripmanager/service/messaging/memory"
	"github.com/viant/tripmanager/service/trigger"
	httptrigger "github.com/viant/tripmanager/service/trigger/http"
	"github.com/viant/tripmanager/service/trigger/queue"
	"github.com/viant/tripmanager/tracing"
	"golang.org/x/sync/errgroup"
)

// Version is reported in traces
const Version = "0.1.0"

const shutdownTimeout = 10 * time.Second

// Service wires the trip manager: host, coordinator, triggers and
// supporting infrastructure
type Service struct {
	config          *Config
	logger          *slog.Logger
	workflow        host.Workflow
	instanceDAO     dao.Service[instance.Key, instance.Instance]
	validator       auth.Validator
	metricsRegistry *prometheus.Registry

	host        *host.Service
	coordinator *coordinator.Service
	events      *event.Service
	index       index.Index
	sync        *index.Sync
	startQueue  messaging.Queue[trigger.StartMessage]
	ackQueue    messaging.Queue[trigger.AcknowledgeMessage]
	consumers   []interface{ Run(ctx context.Context) error }
	handler     *httptrigger.Handler
}

// New creates a trip manager service
func New(ctx context.Context, options ...Option) (*Service, error) {
	s := &Service{}
	for _, opt := range options {
		opt(s)
	}
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metricsRegistry == nil {
		s.metricsRegistry = prometheus.NewRegistry()
		s.metricsRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	if err := s.init(ctx); err != nil {
		_ = s.closeIndex()
		return nil, err
	}
	return s, nil
}

func (s *Service) init(ctx context.Context) error {
	cfg := s.config
	if cfg.Tracing.Enabled {
		if err := tracing.Init(cfg.Tracing.ServiceName, Version, cfg.Tracing.OutputFile); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
	}
	if err := s.ensureInstanceDAO(); err != nil {
		return err
	}
	runQueue, err := newQueue[instance.Run](cfg.Queue, "runs")
	if err != nil {
		return err
	}
	if s.startQueue, err = newQueue[trigger.StartMessage](cfg.Queue, "start"); err != nil {
		return err
	}
	if s.ackQueue, err = newQueue[trigger.AcknowledgeMessage](cfg.Queue, "acknowledge"); err != nil {
		return err
	}

	hostOptions := []host.Option{
		host.WithConfig(cfg.Host.Config),
		host.WithInstanceDAO(s.instanceDAO),
		host.WithRunQueue(runQueue),
		host.WithWorkflow(s.workflow),
		host.WithLogger(s.logger.With("component", "host")),
	}
	if cfg.Index.Enabled {
		publisher, err := s.ensureIndex()
		if err != nil {
			return err
		}
		hostOptions = append(hostOptions, host.WithTransitionPublisher(publisher))
	}
	if s.host, err = host.New(hostOptions...); err != nil {
		return err
	}

	s.coordinator = coordinator.New(s.host,
		coordinator.WithLogger(s.logger.With("component", "coordinator")),
		coordinator.WithMetrics(coordinator.NewMetrics(s.metricsRegistry)))

	consumerOptions := []queue.Option{queue.WithConfig(cfg.Consumer), queue.WithLogger(s.logger)}
	s.consumers = append(s.consumers,
		queue.NewStartConsumer(s.startQueue, s.coordinator, consumerOptions...),
		queue.NewAcknowledgeConsumer(s.ackQueue, s.coordinator, consumerOptions...))

	if cfg.Auth.Enabled && s.validator == nil {
		if s.validator, err = jwt.New(ctx, &cfg.Auth.Config); err != nil {
			return err
		}
	}
	handlerOptions := []httptrigger.Option{
		httptrigger.WithAuth(cfg.Auth.Enabled, s.validator),
		httptrigger.WithGatherer(s.metricsRegistry),
		httptrigger.WithLogger(s.logger.With("component", "http")),
	}
	if s.index != nil {
		handlerOptions = append(handlerOptions, httptrigger.WithIndex(s.index))
	}
	s.handler = httptrigger.New(s.coordinator, handlerOptions...)
	return nil
}

func (s *Service) ensureInstanceDAO() error {
	if s.instanceDAO != nil {
		return nil
	}
	switch s.config.Host.StoreVendor {
	case StoreFs:
		store, err := daofs.New(s.config.Host.StoreURL, s.logger)
		if err != nil {
			return err
		}
		s.instanceDAO = store
	default:
		s.instanceDAO = daomemory.New()
	}
	return nil
}

func (s *Service) ensureIndex() (*event.Publisher[instance.Transition], error) {
	var err error
	if s.config.Index.DSN == "" {
		s.index = imemory.New()
	} else if s.index, err = sqlite.Open(s.config.Index.DSN); err != nil {
		return nil, err
	}
	s.sync = index.NewSync(s.index, s.logger.With("component", "index"))
	queueConfig := s.config.Queue
	s.events, err = event.New(queueConfig.Vendor,
		event.WithLogger(s.logger),
		event.WithNewMemoryQueueConfig(func(string) mmemory.Config { return memoryConfig(queueConfig) }),
		event.WithNewFsQueueConfig(func(name string) mfs.Config { return fsConfig(queueConfig, "events/"+name) }))
	if err != nil {
		return nil, err
	}
	return event.PublisherOf[instance.Transition](s.events)
}

// Coordinator returns the coordinator
func (s *Service) Coordinator() *coordinator.Service { return s.coordinator }

// Host returns the orchestration host
func (s *Service) Host() *host.Service { return s.host }

// Handler returns the HTTP trigger handler
func (s *Service) Handler() http.Handler { return s.handler }

// StartQueue returns the queue consumed by the start trigger
func (s *Service) StartQueue() messaging.Queue[trigger.StartMessage] { return s.startQueue }

// AcknowledgeQueue returns the queue consumed by the driver acknowledgement trigger
func (s *Service) AcknowledgeQueue() messaging.Queue[trigger.AcknowledgeMessage] { return s.ackQueue }

// Index returns the active-key index, or nil when disabled
func (s *Service) Index() index.Index { return s.index }

// Config returns the effective configuration
func (s *Service) Config() *Config { return s.config }

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. Active instances are left for the next Run to resume.
func (s *Service) Run(ctx context.Context) error {
	for _, q := range []interface{}{s.startQueue, s.ackQueue} {
		if recoverer, ok := q.(interface {
			Recover(ctx context.Context) (int, error)
		}); ok {
			if _, err := recoverer.Recover(ctx); err != nil {
				return err
			}
		}
	}
	if s.events != nil {
		if err := event.SetListenerOf[instance.Transition](ctx, s.events, s.sync.Handle); err != nil {
			return err
		}
	}
	if err := s.host.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, consumer := range s.consumers {
		consumer := consumer
		g.Go(func() error { return consumer.Run(gctx) })
	}
	if addr := s.config.HTTP.Addr; addr != "" {
		server := &http.Server{Addr: addr, Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			s.logger.Info("http server listening", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}
	err := g.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(err, s.Shutdown(shutdownCtx))
}

// Shutdown stops the host and releases resources
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error
	if s.host != nil {
		errs = append(errs, s.host.Shutdown(ctx))
	}
	if s.events != nil {
		s.events.Close()
	}
	errs = append(errs, s.closeIndex(), tracing.Shutdown(ctx))
	return errors.Join(errs...)
}

func (s *Service) closeIndex() error {
	if closer, ok := s.index.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func newQueue[T any](cfg QueueConfig, name string) (messaging.Queue[T], error) {
	switch cfg.Vendor {
	case messaging.VendorFs:
		return mfs.NewQueue[T](afs.New(), fsConfig(cfg, name))
	case messaging.VendorMemory:
		return mmemory.NewQueue[T](memoryConfig(cfg)), nil
	}
	return nil, fmt.Errorf("unsupported queue vendor: %s", cfg.Vendor)
}

func memoryConfig(cfg QueueConfig) mmemory.Config {
	return mmemory.Config{MaxRetries: cfg.MaxRetries, RetryDelay: cfg.RetryDelay, DeadLetter: true, QueueBuffer: cfg.Buffer}
}

func fsConfig(cfg QueueConfig, name string) mfs.Config {
	return mfs.Config{BaseURL: url.Join(cfg.BaseURL, name), MaxRetries: cfg.MaxRetries, RetryDelay: cfg.RetryDelay}
}
