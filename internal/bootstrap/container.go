package bootstrap

import (
	"context"

	"golang.org/x/sync/errgroup"
	adkmodel "google.golang.org/adk/model"

	"tripmind/internal/adapters/adk"
	"tripmind/internal/adapters/config"
	"tripmind/internal/adapters/enrichment"
	"tripmind/internal/adapters/kafka"
	redisadapter "tripmind/internal/adapters/redis"
	"tripmind/internal/adapters/telegram"
	"tripmind/internal/agents"
	"tripmind/internal/aggregator"
	"tripmind/internal/api"
	"tripmind/internal/api/health"
	"tripmind/internal/api/ws"
	"tripmind/internal/domain/session"
	"tripmind/internal/intent"
	"tripmind/internal/orchestrator"
	"tripmind/internal/repository/memory"
	"tripmind/internal/workers"
	"tripmind/pkg/errors"
	"tripmind/pkg/logger"
	tg "tripmind/pkg/telegram"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure (optional)
	Redis         *redisadapter.Client
	KafkaProducer *kafka.Producer

	Sessions    *Sessions
	Business    *Business
	Application *Application
	Background  *Background

	Lifecycle *Lifecycle
	Context   context.Context
	Cancel    context.CancelFunc
	group     *errgroup.Group
}

// Sessions groups the conversation store
type Sessions struct {
	Repository session.Repository
	// Memory is set when sessions live in process; the sweeper uses it
	Memory  *memory.SessionRepository
	Service *session.Service
}

// Business groups the turn pipeline
type Business struct {
	Classifier   *intent.Classifier
	Registry     *agents.Registry
	Model        adkmodel.LLM
	Gateway      *adk.Gateway
	Completer    *aggregator.Completer
	Enricher     *enrichment.Enricher
	Orchestrator *orchestrator.Orchestrator
}

// Application groups the transports
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
	WebSocket     *ws.Handler
	TelegramBot   tg.Bot
	Telegram      *telegram.Transport
}

// Background groups periodic workers
type Background struct {
	WorkerScheduler *workers.Scheduler
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Sessions:    &Sessions{},
		Business:    &Business{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitSessions()
	c.MustInitBusiness()
	c.MustInitApplication()
	c.MustInitBackground()
}

// Start launches the HTTP server, the Telegram transport and the workers.
// A fatal error from any of them cancels the container context.
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	g, ctx := errgroup.WithContext(c.Context)
	c.group = g

	if err := c.Background.WorkerScheduler.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	g.Go(func() error {
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel()
			return err
		}
		return nil
	})

	if c.Application.Telegram != nil {
		g.Go(func() error {
			if err := c.Application.Telegram.Run(ctx); err != nil && ctx.Err() == nil {
				c.Log.Errorw("Telegram transport failed", "error", err)
				return err
			}
			return nil
		})
	}

	c.Log.Info("✓ All systems operational")
	return nil
}

// Done is closed when the container context is cancelled
func (c *Container) Done() <-chan struct{} {
	return c.Context.Done()
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// Stop accepting new turns and close transports before the pipeline
	c.Lifecycle.Shutdown(c)
}
