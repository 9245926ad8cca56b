package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/psds-microservice/voice-support/internal/auth"
	"github.com/psds-microservice/voice-support/internal/config"
	"github.com/psds-microservice/voice-support/internal/database"
	"github.com/psds-microservice/voice-support/internal/embedding"
	"github.com/psds-microservice/voice-support/internal/handler"
	"github.com/psds-microservice/voice-support/internal/idempotency"
	"github.com/psds-microservice/voice-support/internal/kafka"
	"github.com/psds-microservice/voice-support/internal/matcher"
	"github.com/psds-microservice/voice-support/internal/metrics"
	"github.com/psds-microservice/voice-support/internal/notify"
	"github.com/psds-microservice/voice-support/internal/repository"
	"github.com/psds-microservice/voice-support/internal/router"
	"github.com/psds-microservice/voice-support/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// API приложение: HTTP-сервер, шина уведомлений и её подписчики (режим api).
type API struct {
	cfg      *config.Config
	log      *zap.Logger
	httpSrv  *http.Server
	bus      *notify.Bus
	producer *kafka.Producer
	redis    *redis.Client
	db       *gorm.DB
}

// NewAPI проверяет конфиг, применяет миграции и собирает зависимости.
func NewAPI(cfg *config.Config, log *zap.Logger) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL(), log); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	m := metrics.New()
	tickets := repository.NewTicketRepository(db)
	faq := repository.NewFAQRepository(db)
	embedder := newEmbedder(cfg, log, m)
	match := matcher.New(log, m)

	bus := notify.NewBus(notify.DefaultQueueSize, notify.DefaultMaxListeners, log, m)
	hub := notify.NewHub(notify.Policy{PreviewLen: cfg.Notify.PreviewLen}, cfg.Notify.LogSize, log, m)
	if err := bus.Subscribe("admin-hub", hub.Handle); err != nil {
		return nil, err
	}
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket, log)
	if producer.Enabled() {
		if err := bus.Subscribe("kafka", producer.Handle); err != nil {
			return nil, err
		}
	}

	var (
		rdb   *redis.Client
		store idempotency.Store
	)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		store = idempotency.NewRedisStore(rdb, idempotency.WithTTL(cfg.IdempotencyTTL))
	}

	escalation := service.NewEscalationService(service.EscalationDeps{
		Embedder:      embedder,
		FAQ:           faq,
		Tickets:       tickets,
		Conversations: repository.NewConversationRepository(db),
		Matcher:       match,
		Idempotency:   store,
		Events:        bus,
		Log:           log,
		Metrics:       m,
	}, service.EscalationConfig{
		Threshold:      cfg.Match.Threshold,
		SummaryMaxLen:  cfg.Match.SummaryMaxLen,
		CandidateLimit: cfg.Match.CandidateLimit,
	})
	ticketSvc := service.NewTicketService(tickets, repository.NewMessageRepository(db), bus, cfg.Match.SummaryMaxLen, log)
	faqSvc := service.NewFAQService(faq, embedder, match, cfg.Match.CandidateLimit, log)
	session := auth.NewManager(cfg.SessionSecret(), cfg.Admin.SessionTTL, cfg.Admin.Email, cfg.Admin.Password)

	h := router.New(router.Deps{
		Voice:   handler.NewVoiceHandler(escalation),
		Tickets: handler.NewTicketHandler(ticketSvc),
		FAQ:     handler.NewFAQHandler(faqSvc),
		Auth:    handler.NewAuthHandler(session, cfg.AppEnv == "production"),
		Stream:  handler.NewStreamHandler(hub, log),
		Session: session,
		Ready:   sqlDB,
		Metrics: m.Handler(),
		Log:     log,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{
		cfg:      cfg,
		log:      log,
		httpSrv:  httpSrv,
		bus:      bus,
		producer: producer,
		redis:    rdb,
		db:       db,
	}, nil
}

// Run запускает HTTP-сервер и шину, блокируется до отмены ctx.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info("http server listening",
		zap.String("addr", a.httpSrv.Addr),
		zap.String("swagger", base+router.PathSwagger),
		zap.String("health", base+router.PathHealth),
		zap.String("ready", base+router.PathReady),
		zap.String("metrics", base+router.PathMetrics),
		zap.String("api", base+"/api/v1/"),
		zap.Bool("kafka", a.producer.Enabled()),
		zap.Bool("idempotency", a.redis != nil),
	)

	busCtx, stopBus := context.WithCancel(context.Background())
	busDone := make(chan struct{})
	go func() {
		defer close(busDone)
		a.bus.Run(busCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		runErr = fmt.Errorf("http: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}
	stopBus()
	<-busDone
	a.close()
	return runErr
}

func (a *API) close() {
	if err := a.producer.Close(); err != nil {
		a.log.Warn("kafka: close", zap.Error(err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis: close", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// FAQTool: сервис FAQ для команд CLI (seed, reembed) без HTTP-сервера.
type FAQTool struct {
	*service.FAQService
	db *gorm.DB
}

func NewFAQTool(cfg *config.Config, log *zap.Logger) (*FAQTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	svc := service.NewFAQService(repository.NewFAQRepository(db), newEmbedder(cfg, log, nil), nil, cfg.Match.CandidateLimit, log)
	return &FAQTool{FAQService: svc, db: db}, nil
}

func (t *FAQTool) Close() error {
	sqlDB, err := t.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newEmbedder(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) *embedding.Fallback {
	var p embedding.Provider
	if op := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	}); op != nil {
		p = op
	} else {
		log.Warn("OPENAI_API_KEY not set: every voice request will escalate to a ticket")
	}
	return embedding.NewFallback(p, cfg.Embedding.Dimensions, log, m)
}
