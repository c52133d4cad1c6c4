package bootstrap

import (
	"context"
	"time"

	"tripmind/internal/adapters/adk"
	"tripmind/internal/adapters/config"
	"tripmind/internal/adapters/enrichment"
	errnoop "tripmind/internal/adapters/errors/noop"
	"tripmind/internal/adapters/errors/sentry"
	"tripmind/internal/adapters/kafka"
	redisadapter "tripmind/internal/adapters/redis"
	"tripmind/internal/adapters/telegram"
	"tripmind/internal/agents"
	"tripmind/internal/aggregator"
	"tripmind/internal/api"
	"tripmind/internal/api/health"
	"tripmind/internal/api/ws"
	"tripmind/internal/domain/session"
	"tripmind/internal/domain/turn"
	"tripmind/internal/intent"
	"tripmind/internal/metrics"
	"tripmind/internal/orchestrator"
	"tripmind/internal/repository/memory"
	redisrepo "tripmind/internal/repository/redis"
	"tripmind/internal/workers"
	"tripmind/pkg/errors"
	"tripmind/pkg/logger"
	"tripmind/pkg/telegram/adapters/tgbotapi"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg
	c.Lifecycle.SetTimeout(cfg.Server.ShutdownTimeout)

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects optional stores and brokers (Redis, Kafka)
func (c *Container) MustInitInfrastructure() {
	metrics.Init()

	if c.Config.Redis.Enabled {
		c.Log.Info("Connecting to Redis...")
		client, err := redisadapter.NewClient(c.Context, c.Config.Redis)
		switch {
		case err == nil:
			c.Redis = client
			c.Log.Info("✓ Redis connected")
		case c.Config.Session.Storage == "redis":
			c.Log.Fatalf("failed to connect redis: %v", err)
		default:
			c.Log.Warnw("Redis unavailable, continuing with in-process caches", "error", err)
		}
	}

	c.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
}

// ========================================
// Phase 3: Session store
// ========================================

// MustInitSessions selects the session repository
func (c *Container) MustInitSessions() {
	switch c.Config.Session.Storage {
	case "redis":
		c.Sessions.Repository = redisrepo.NewSessionRepository(c.Redis.Client(), c.Config.Session.IdleTTL)
	default:
		var opts []memory.Option
		if c.Config.Session.IdleTTL > 0 {
			opts = append(opts, memory.WithEviction(memory.IdleLongerThan(c.Config.Session.IdleTTL)))
		}
		c.Sessions.Memory = memory.NewSessionRepository(opts...)
		c.Sessions.Repository = c.Sessions.Memory
	}

	c.Sessions.Service = session.NewService(c.Sessions.Repository)
	c.Log.Infow("✓ Session store initialized", "storage", c.Config.Session.Storage, "idle_ttl", c.Config.Session.IdleTTL)
}

// ========================================
// Phase 4: Turn pipeline
// ========================================

// MustInitBusiness builds classifier, agents, gateway, aggregator and orchestrator
func (c *Container) MustInitBusiness() {
	tables, err := intent.LoadTables(c.Config.Intent.TablesPath)
	if err != nil {
		c.Log.Fatalf("failed to load intent tables: %v", err)
	}
	c.Business.Classifier, err = intent.NewClassifier(tables)
	if err != nil {
		c.Log.Fatalf("failed to build classifier: %v", err)
	}

	c.Business.Registry = agents.NewRegistry(nil)
	c.Business.Enricher = enrichment.NewFromConfig(c.Config.Enrichment, provideEnrichmentCache(c))

	c.Business.Model, err = adk.NewModel(c.Context, c.Config.Model)
	if err != nil {
		c.Log.Fatalf("failed to create model: %v", err)
	}
	c.Log.Infow("✓ Model initialized", "provider", c.Config.Model.Provider, "model", c.Business.Model.Name())

	c.Business.Gateway = provideGateway(c)
	c.Business.Completer = aggregator.NewCompleter(
		c.Business.Gateway,
		func(handler, prompt string) (string, error) {
			return c.Business.Registry.BuildDirective(agents.HandlerID(handler), prompt)
		},
		aggregator.PolicyFromConfig(c.Config.Turn),
		c.Config.Turn.Timeout,
	)

	var publisher turn.Publisher = turn.NoopPublisher{}
	if c.KafkaProducer != nil {
		publisher = kafka.NewTurnPublisher(c.KafkaProducer, c.Config.Kafka.TurnsTopic)
	}

	c.Business.Orchestrator = orchestrator.New(orchestrator.Deps{
		Sessions:      c.Sessions.Service,
		Classifier:    c.Business.Classifier,
		Registry:      c.Business.Registry,
		Completer:     c.Business.Completer,
		Enricher:      c.Business.Enricher,
		Publisher:     publisher,
		Tracker:       c.ErrorTracker,
		HistoryWindow: c.Config.Turn.HistoryWindow,
		ExcerptRunes:  c.Config.Turn.ExcerptRunes,
		TurnTimeout:   c.Config.Turn.Timeout,
	})

	metrics.RegisterCustomCollector(metrics.NewCustomCollector(c.Log, c.Sessions.Service, c.Business.Orchestrator))

	c.Log.Infow("✓ Turn pipeline initialized", "handlers", len(c.Business.Registry.List()))
}

// ========================================
// Phase 5: Transports
// ========================================

// MustInitApplication builds the HTTP server, websocket endpoint and Telegram transport
func (c *Container) MustInitApplication() {
	c.Application.HealthHandler = health.New(c.Log, c.Config.App.Name, c.Config.App.Version)
	if c.Redis != nil {
		c.Application.HealthHandler.AddCheck("redis", withTimeout(c.Redis.Health))
	}

	c.Application.WebSocket = ws.NewHandler(c.Business.Orchestrator, ws.Config{
		AllowedOrigins: c.Config.Server.AllowedOrigins,
		PingInterval:   c.Config.Server.PingInterval,
	}, c.Log)

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Addr:        c.Config.Server.Addr(),
		ServiceName: c.Config.App.Name,
		Version:     c.Config.App.Version,
	}, c.Application.HealthHandler, c.Application.WebSocket, c.Business.Orchestrator, c.Sessions.Service, c.Log)

	if c.Config.Telegram.BotToken == "" {
		c.Log.Info("Telegram transport disabled (no TELEGRAM_BOT_TOKEN)")
		return
	}

	bot, err := tgbotapi.NewBot(tgbotapi.Config{
		Token: c.Config.Telegram.BotToken,
		Debug: c.Config.Telegram.Debug,
	}, c.Log)
	if err != nil {
		c.Log.Fatalf("failed to create telegram bot: %v", err)
	}
	c.Application.TelegramBot = bot
	c.Application.Telegram = telegram.NewTransport(bot, c.Business.Orchestrator, c.Sessions.Service, c.Log)
	c.Log.Info("✓ Telegram transport initialized")
}

// ========================================
// Phase 6: Background
// ========================================

// MustInitBackground registers periodic workers
func (c *Container) MustInitBackground() {
	c.Background.WorkerScheduler = workers.NewScheduler()

	if c.Sessions.Memory != nil && c.Config.Session.IdleTTL > 0 {
		c.Background.WorkerScheduler.RegisterWorker(workers.NewSessionSweeper(c.Sessions.Memory, c.Config.Session.Sweep))
	}
}

// ========================================
// Providers
// ========================================

// provideErrorTracker initializes error tracking (Sentry or no-op)
func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

// provideKafkaProducer returns nil when no brokers are configured
func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
	if err != nil {
		log.Infow("Turn events disabled", "reason", err)
		return nil
	}

	log.Infow("✓ Kafka producer initialized", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.TurnsTopic)
	return producer
}

// provideEnrichmentCache shares enrichment results through Redis when it is available
func provideEnrichmentCache(c *Container) enrichment.Cache {
	if c.Redis != nil {
		return enrichment.NewRedisCache(c.Redis, c.Config.Enrichment.CacheTTL)
	}
	return enrichment.NewMemoryCache(c.Config.Enrichment.CacheTTL)
}

// provideGateway creates one agent per handler and mounts them on the ADK runner
func provideGateway(c *Container) *adk.Gateway {
	deps := agents.FactoryDeps{
		Registry: c.Business.Registry,
		Model:    c.Business.Model,
		Generation: agents.GenerationConfig{
			Temperature:     c.Config.Model.Temperature,
			TopP:            c.Config.Model.TopP,
			TopK:            c.Config.Model.TopK,
			MaxOutputTokens: c.Config.Model.MaxOutputToks,
		},
	}
	if c.Business.Enricher.WebSearchEnabled() {
		deps.Search = c.Business.Enricher.Search
	}

	factory, err := agents.NewFactory(deps)
	if err != nil {
		c.Log.Fatalf("failed to create agent factory: %v", err)
	}

	handlerAgents, err := factory.CreateAll()
	if err != nil {
		c.Log.Fatalf("failed to create agents: %v", err)
	}

	gateway, err := adk.NewGateway(c.Config.App.Name, handlerAgents)
	if err != nil {
		c.Log.Fatalf("failed to create gateway: %v", err)
	}

	c.Log.Infow("✓ Agents initialized", "count", len(handlerAgents), "web_search", deps.Search != nil)
	return gateway
}

// readinessTimeout bounds a single dependency probe
const readinessTimeout = 2 * time.Second

func withTimeout(check health.CheckFunc) health.CheckFunc {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
		defer cancel()
		return check(ctx)
	}
}
