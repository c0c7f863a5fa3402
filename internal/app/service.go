// Package service assembles the scoring engine, its store, the scheduler and
// the HTTP API from configuration.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/okian/paddock/internal/adapters/http/api"
	"github.com/okian/paddock/internal/adapters/http/swagger"
	"github.com/okian/paddock/internal/adapters/notify"
	"github.com/okian/paddock/internal/adapters/repository"
	"github.com/okian/paddock/internal/adapters/repository/postgres"
	"github.com/okian/paddock/internal/config"
	"github.com/okian/paddock/internal/domain/audit"
	"github.com/okian/paddock/internal/domain/scoring"
	"github.com/okian/paddock/internal/engine"
	"github.com/okian/paddock/internal/scheduler"
	"github.com/okian/paddock/pkg/logger"
	"github.com/okian/paddock/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 2 * time.Minute
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

const (
	batchJobName         = "score-pending-results"
	schedulerActor       = "scheduler"
	defaultStatsInterval = 30 * time.Second
)

// Sentinel kinds for service lifecycle errors.
var (
	ErrNotOpen        = errors.New("service not open")
	ErrAlreadyStarted = errors.New("service already started")
)

// Service owns every long-lived component of the process.
type Service struct {
	mu sync.Mutex

	cfg *config.Config

	store     repository.Store
	rules     *scoring.Registry
	publisher *notify.RedisPublisher
	engine    *engine.Engine
	scheduler *scheduler.Runner
	server    *http.Server
	listener  net.Listener

	// Injected components
	injectedStore repository.Store
	notifier      engine.Notifier
	engineOpts    []engine.Option
	statsInterval time.Duration

	open    bool
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service from cfg. Nothing is connected until Open.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg:           cfg,
		statsInterval: defaultStatsInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects the store, builds the rule registry and the engine. It is
// enough for one-shot commands; Start additionally serves HTTP and runs the
// scheduler.
func (s *Service) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(ctx)
}

func (s *Service) openLocked(ctx context.Context) error {
	if s.open {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	rules, err := s.cfg.Rules.Registry()
	if err != nil {
		return fmt.Errorf("build rule registry: %w", err)
	}

	store, err := s.openStore(ctx)
	if err != nil {
		return err
	}

	opts := []engine.Option{
		engine.WithWorkers(s.cfg.Batch.Workers),
		engine.WithQueueSize(s.cfg.Batch.QueueSize),
		engine.WithPairsPerSecond(s.cfg.Batch.PairsPerSecond),
		engine.WithPairTimeout(s.cfg.Batch.PairTimeout),
	}
	switch {
	case s.notifier != nil:
		opts = append(opts, engine.WithNotifier(s.notifier))
	case s.cfg.Redis.Enabled:
		s.publisher = notify.Dial(notify.Config{
			Addr:            s.cfg.Redis.Addr,
			Password:        s.cfg.Redis.Password,
			DB:              s.cfg.Redis.DB,
			Channel:         s.cfg.Redis.Channel,
			BreakerFailures: s.cfg.Redis.BreakerFailures,
			BreakerTimeout:  s.cfg.Redis.BreakerTimeout,
		})
		opts = append(opts, engine.WithNotifier(s.publisher))
	}
	opts = append(opts, s.engineOpts...)

	s.store = store
	s.rules = rules
	s.engine = engine.New(store, rules, opts...)
	s.open = true

	s.logger.Info(ctx, "scoring service opened",
		logger.String("store", s.cfg.Store.Driver),
		logger.String("rule_set", rules.Label()),
		logger.Int("prop_types", rules.Len()),
		logger.Bool("notify", s.publisher != nil || s.notifier != nil),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	if s.injectedStore != nil {
		return s.injectedStore, nil
	}
	switch s.cfg.Store.Driver {
	case config.StorePostgres:
		pg, err := postgres.Open(ctx, postgres.Config{
			Driver:          s.cfg.Store.SQLDriver,
			DSN:             s.cfg.Store.DSN,
			MaxOpenConns:    s.cfg.Store.MaxOpenConns,
			MaxIdleConns:    s.cfg.Store.MaxIdleConns,
			ConnMaxLifetime: s.cfg.Store.ConnMaxLifetime,
			QueryTimeout:    s.cfg.Store.QueryTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if s.cfg.Store.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, fmt.Errorf("migrate postgres store: %w", err)
			}
		}
		return pg, nil
	default:
		s.logger.Warn(ctx, "using in-memory store; scores are lost on exit")
		return repository.NewMemoryStore(), nil
	}
}

// Migrate applies the database schema. The in-memory store needs none.
func (s *Service) Migrate(ctx context.Context) error {
	if err := s.Open(ctx); err != nil {
		return err
	}
	m, ok := s.store.(interface{ Migrate(context.Context) error })
	if !ok {
		s.logger.Info(ctx, "store has no schema to migrate", logger.String("store", s.cfg.Store.Driver))
		return nil
	}
	if err := m.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	s.logger.Info(ctx, "schema applied")
	return nil
}

// Start opens the service, starts the scheduler when enabled and begins
// serving HTTP on the configured address.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	if err := s.openLocked(ctx); err != nil {
		return err
	}

	if s.cfg.Schedule.Enabled {
		s.scheduler = scheduler.New(ctx)
		if _, err := s.scheduler.Add(batchJobName, s.cfg.Schedule.Spec, s.runScheduledBatch); err != nil {
			return fmt.Errorf("schedule batch: %w", err)
		}
		s.scheduler.Start()
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		if s.scheduler != nil {
			_ = s.scheduler.Stop(ctx)
		}
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.handlerLocked(ctx),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.stopCh = make(chan struct{})
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.logger.Info(ctx, "starting HTTP server", logger.String("addr", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}()
	go func() {
		defer s.wg.Done()
		s.refreshPending(context.WithoutCancel(ctx))
	}()

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.Bool("schedule", s.cfg.Schedule.Enabled),
		logger.String("schedule_spec", s.cfg.Schedule.Spec),
		logger.Int("workers", s.cfg.Batch.Workers),
	)
	return nil
}

// Stop shuts the HTTP server down, waits for scheduled runs and closes the
// notifier and the store. It is safe to call more than once.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.started {
		s.logger.Info(ctx, "stopping scoring service...")
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http: %w", err))
		}
		if s.scheduler != nil {
			if err := s.scheduler.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
			}
		}
		close(s.stopCh)
		s.wg.Wait()
		s.started = false
	}

	if s.open {
		if s.publisher != nil {
			if err := s.publisher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close notifier: %w", err))
			}
		}
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		s.open = false
		s.logger.Info(ctx, "scoring service stopped")
	}
	return errors.Join(errs...)
}

// Handler returns the HTTP routes of the service.
func (s *Service) Handler(ctx context.Context) (http.Handler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, ErrNotOpen
	}
	return s.handlerLocked(ctx), nil
}

func (s *Service) handlerLocked(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(dependencies{Engine: s.engine, Store: s.store}).Register(ctx, mux)
	return mux
}

// Addr returns the bound HTTP address once started.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Engine returns the scoring engine. It is nil before Open.
func (s *Service) Engine() *engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// Rules returns the active rule registry. It is nil before Open.
func (s *Service) Rules() *scoring.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules
}

// Store returns the active store. It is nil before Open.
func (s *Service) Store() repository.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// Schedule lists the scheduled jobs. It is empty unless the scheduler runs.
func (s *Service) Schedule() []scheduler.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Entries()
}

func (s *Service) runScheduledBatch(ctx context.Context) {
	_, err := s.engine.ScorePendingResults(audit.WithActor(ctx, schedulerActor))
	switch {
	case errors.Is(err, engine.ErrBatchInProgress):
		s.logger.Debug(ctx, "scheduled batch skipped; another run is active")
	case err != nil:
		s.logger.Error(ctx, "scheduled batch failed", logger.Error(err))
	}
}

// refreshPending keeps the pending-pairs gauge current between batch runs.
func (s *Service) refreshPending(ctx context.Context) {
	ticker := time.NewTicker(s.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			pending, err := s.engine.Pending(ctx)
			if err != nil {
				s.logger.Warn(ctx, "pending pairs refresh failed", logger.Error(err))
				metrics.RecordErrorByComponent("service", "pending_refresh")
				continue
			}
			metrics.UpdatePendingPairs(len(pending))
		}
	}
}

// dependencies bundles what the HTTP layer needs.
type dependencies struct {
	*engine.Engine
	repository.Store
}
