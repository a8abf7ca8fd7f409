// Package bootstrap assembles the store, policy and services shared by the
// API server and the one-shot sweep command.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/ticket-escalation/internal/clock"
	"github.com/spec-kit/ticket-escalation/internal/config"
	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/events"
	"github.com/spec-kit/ticket-escalation/internal/observability"
	"github.com/spec-kit/ticket-escalation/internal/persistence"
	"github.com/spec-kit/ticket-escalation/internal/policy"
	"github.com/spec-kit/ticket-escalation/internal/repository"
	"github.com/spec-kit/ticket-escalation/internal/repository/memstore"
	"github.com/spec-kit/ticket-escalation/internal/service"
)

// Repositories groups every store the services need.
type Repositories struct {
	Tickets     repository.TicketRepository
	Units       repository.UnitRepository
	Categories  repository.CategoryRepository
	Users       repository.UserRepository
	Rules       repository.EscalationRuleRepository
	Escalations repository.EscalationRepository
	Executions  repository.RuleExecutionRepository
	History     repository.TicketHistoryRepository
	Audit       repository.AuditLogRepository
	Sequence    repository.SequenceSource
}

// Container holds the wired application.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Matrix     *policy.Matrix
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Repos      Repositories
	Dispatcher events.Dispatcher
	Audit      *service.AuditTrail
	// Notifications is subscribed to Dispatcher when the services are built.
	Notifications *service.NotificationService
	Access        *service.AccessService
	Lifecycle     *service.LifecycleService
	Tickets       *service.TicketService
	Escalation    *service.EscalationService
}

// New connects the stores selected by cfg and builds the services.
// Without a Postgres DSN everything runs on the in-memory store.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	logger = observability.OrNop(logger)
	c := &Container{
		Config:     cfg,
		Logger:     logger,
		Metrics:    observability.NewMetrics(),
		Dispatcher: events.NewInMemoryDispatcher(),
	}

	matrix, err := policy.Load(cfg.Policy.CapabilitiesFile)
	if err != nil {
		return nil, err
	}
	c.Matrix = matrix
	logger.Info("capability matrix loaded", zap.String("version", matrix.Version()))

	c.Redis = persistence.NewRedis(cfg.Redis, logger)

	if cfg.Postgres.DSN != "" {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.Postgres = pg
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				c.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		c.Repos = postgresRepositories(pg)
	} else {
		logger.Warn("POSTGRES_DSN not provided; using in-memory store")
		c.Repos = memoryRepositories(memstore.New())
	}

	if err := c.selectSequence(); err != nil {
		c.Close()
		return nil, err
	}

	c.buildServices()
	return c, nil
}

func postgresRepositories(pg *persistence.Postgres) Repositories {
	pool := pg.PoolHandle()
	return Repositories{
		Tickets:     repository.NewTicketRepository(pool),
		Units:       repository.NewUnitRepository(pool),
		Categories:  repository.NewCategoryRepository(pool),
		Users:       repository.NewUserRepository(pool),
		Rules:       repository.NewEscalationRuleRepository(pool),
		Escalations: repository.NewEscalationRepository(pool),
		Executions:  repository.NewRuleExecutionRepository(pool),
		History:     repository.NewTicketHistoryRepository(pool),
		Audit:       repository.NewAuditLogRepository(pool),
		Sequence:    repository.NewPostgresSequence(pool),
	}
}

func memoryRepositories(store *memstore.Store) Repositories {
	return Repositories{
		Tickets:     store.Tickets(),
		Units:       store.Units(),
		Categories:  store.Categories(),
		Users:       store.Users(),
		Rules:       store.Rules(),
		Escalations: store.Escalations(),
		Executions:  store.Executions(),
		History:     store.History(),
		Audit:       store.Audit(),
		Sequence:    store.Sequence(),
	}
}

// selectSequence honours TICKET_NUMBER_BACKEND. The postgres backend
// silently degrades to the store's own sequence in memory mode.
func (c *Container) selectSequence() error {
	switch c.Config.TicketNumber.Backend {
	case "redis":
		if !c.Redis.Enabled() {
			return errors.New("TICKET_NUMBER_BACKEND=redis requires REDIS_ADDR")
		}
		c.Repos.Sequence = repository.NewRedisSequence(c.Redis.Client, c.Config.TicketNumber.RedisKey)
	case "memory":
		if c.Postgres != nil {
			return errors.New("TICKET_NUMBER_BACKEND=memory cannot number tickets stored in postgres")
		}
	}
	return nil
}

func (c *Container) buildServices() {
	cfg := c.Config
	clk := clock.Real()
	// validated by config.Load
	location, _ := cfg.Policy.Location()

	globalRoles := make([]domain.Role, 0, len(cfg.Policy.GlobalRoles))
	for _, role := range cfg.Policy.GlobalRoles {
		globalRoles = append(globalRoles, domain.Role(role))
	}

	c.Notifications = service.NewNotificationService(c.Dispatcher, c.Repos.Users, c.Logger, cfg.Notification)
	c.Notifications.RegisterHandlers()

	hierarchy := service.NewUnitHierarchy(c.Repos.Units)
	c.Audit = service.NewAuditTrail(c.Repos.Audit, clk, c.Logger)
	c.Access = service.NewAccessService(service.AccessDependencies{
		Policy:         policy.NewAccessPolicy(c.Matrix, globalRoles),
		Hierarchy:      hierarchy,
		EscalationRepo: c.Repos.Escalations,
		Audit:          c.Audit,
		Metrics:        c.Metrics,
		Logger:         c.Logger,
	})
	c.Lifecycle = service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:  c.Repos.Tickets,
		HistoryRepo: c.Repos.History,
		Dispatcher:  c.Dispatcher,
		Clock:       clk,
		Logger:      c.Logger,
	})
	c.Tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo:    c.Repos.Tickets,
		UnitRepo:      c.Repos.Units,
		CategoryRepo:  c.Repos.Categories,
		HistoryRepo:   c.Repos.History,
		Lifecycle:     c.Lifecycle,
		Access:        c.Access,
		Matrix:        c.Matrix,
		SLA:           service.NewSLACalculator(cfg.Policy.DefaultSLA()),
		Numbers:       service.NewTicketNumberGenerator(c.Repos.Sequence, clk, location),
		Dispatcher:    c.Dispatcher,
		Clock:         clk,
		Logger:        c.Logger,
		NumberRetries: cfg.TicketNumber.MaxRetries,
	})

	var limiter *rate.Limiter
	if perSecond := cfg.Escalation.RatePerSecond; perSecond > 0 {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	c.Escalation = service.NewEscalationService(service.EscalationDependencies{
		TicketRepo:     c.Repos.Tickets,
		UnitRepo:       c.Repos.Units,
		UserRepo:       c.Repos.Users,
		RuleRepo:       c.Repos.Rules,
		EscalationRepo: c.Repos.Escalations,
		ExecutionRepo:  c.Repos.Executions,
		Lifecycle:      c.Lifecycle,
		Access:         c.Access,
		Hierarchy:      hierarchy,
		Matrix:         c.Matrix,
		Dispatcher:     c.Dispatcher,
		Clock:          clk,
		Limiter:        limiter,
		Metrics:        c.Metrics,
		Logger:         c.Logger,
		CandidateLimit: cfg.Escalation.CandidateLimit,
		ClaimTTL:       cfg.Escalation.LockTTL(),
	})
}

// Close flushes pending audit writes and releases connections.
func (c *Container) Close() {
	if c.Audit != nil {
		c.Audit.Flush()
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	c.Redis.Close()
}
