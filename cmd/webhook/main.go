package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tamosreddi/orders-sub001/internal/config"
	gateway "github.com/tamosreddi/orders-sub001/internal/gateways"
	"github.com/tamosreddi/orders-sub001/internal/handlers"
	"github.com/tamosreddi/orders-sub001/internal/notify"
	"github.com/tamosreddi/orders-sub001/internal/repository"
	"github.com/tamosreddi/orders-sub001/internal/services"
	"github.com/tamosreddi/orders-sub001/internal/twilio"
	xhttp "github.com/tamosreddi/orders-sub001/pkg/http"
	"github.com/tamosreddi/orders-sub001/pkg/logger"
	"github.com/tamosreddi/orders-sub001/pkg/pg"
	"github.com/tamosreddi/orders-sub001/pkg/prom"
	"github.com/tamosreddi/orders-sub001/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	if err := config.Get().RequireWebhook(); err != nil {
		logger.Error("webhook config incomplete", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	// The stream endpoints hold connections open, a write deadline
	// would cut every stream at the timeout.
	s.Server.WriteTimeout = 0
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	// Change events fan out across processes through Redis, the hub
	// delivers them to this process's stream subscribers.
	hub := notify.NewHub()
	bridge := notify.NewBridge(hub, redisAdap)
	bridge.Run()

	customerRepo := repository.NewCustomerRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	orderSessionRepo := repository.NewOrderSessionRepository(db)

	// services
	ingestService := services.NewIngestService(customerRepo, conversationRepo, messageRepo, bridge)
	conversationService := services.NewConversationService(conversationRepo, messageRepo, bridge)
	orderSessions := services.NewOrderSessionReader(orderSessionRepo)

	var dispatcher *services.AIDispatcher
	if config.Get().AIEnabled && config.Get().AIServiceURL != "" {
		client, err := gateway.NewAIClient(gateway.Config{
			BaseURL: config.Get().AIServiceURL,
			Timeout: config.Get().AIDispatchTimeout,
		})
		if err != nil {
			logger.Error("failed to create ai client", "error", err)
			return
		}
		dispatcher = services.NewAIDispatcher(client, config.Get().AIDispatchTimeout)
	} else {
		dispatcher = services.NewAIDispatcher(nil, config.Get().AIDispatchTimeout)
	}

	// handlers
	webhookHandler := handlers.NewWebhookHandler(
		twilio.NewValidator(config.Get().TwilioAuthToken),
		ingestService,
		dispatcher,
		config.Get().DefaultDistributorID,
		config.Get().PublicWebhookURL,
	)
	conversationHandler := handlers.NewConversationHandler(
		conversationService,
		orderSessions,
		hub,
		config.Get().DefaultDistributorID,
		config.Get().SyncPollInterval,
	)
	annotationHandler := handlers.NewAnnotationHandler(conversationService)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.HealthCheck{
		"postgres": db,
		"redis": pingFunc(func(ctx context.Context) error {
			return redisAdap.Client().Ping(ctx).Err()
		}),
	})

	g := s.Router.Group("/api")
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterConversationRoutes(g, conversationHandler)
	handlers.RegisterAnnotationRoutes(g, annotationHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(config.Get().MetricsListenAddr, "/metrics")
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
		bridge.Stop()
	}
}

// pingFunc adapts a bare function to the health check interface.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
