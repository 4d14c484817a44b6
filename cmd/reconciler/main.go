package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tamosreddi/orders-sub001/internal/config"
	gateway "github.com/tamosreddi/orders-sub001/internal/gateways"
	"github.com/tamosreddi/orders-sub001/internal/reconciler"
	"github.com/tamosreddi/orders-sub001/internal/repository"
	"github.com/tamosreddi/orders-sub001/internal/services"
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
	if err := config.Get().RequireReconciler(); err != nil {
		logger.Error("reconciler config incomplete", "error", err)
		return
	}

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

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)

	client, err := gateway.NewAIClient(gateway.Config{
		BaseURL: config.Get().AIServiceURL,
		Timeout: config.Get().AIDispatchTimeout,
	})
	if err != nil {
		logger.Error("failed to create ai client", "error", err)
		return
	}

	messageRepo := repository.NewMessageRepository(db)
	conversationRepo := repository.NewConversationRepository(db)

	dispatcher := services.NewAIDispatcher(client, config.Get().AIDispatchTimeout)
	ledger := reconciler.NewDispatchLedger(redisAdap, reconciler.DefaultLedgerConfig())

	service, err := reconciler.NewReconcilerService(redisAdap, messageRepo, ledger)
	if err != nil {
		logger.Error("failed to create the reconciler", "error", err)
		return
	}
	service.RegisterProcessor(reconciler.NewDispatchProcessor(dispatcher, messageRepo, conversationRepo, ledger))
	service.WatchGateway(client)

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

	go func() {
		err := service.Start()
		if err != nil {
			logger.Error("failed to start reconciler", "error", err)
		}
	}()

	select {
	case <-c:
		service.Stop()
	}
}

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
