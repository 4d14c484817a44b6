package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/tamosreddi/orders-sub001/pkg/logger"
)

var config *Config

// Config holds every environment-sourced value used by the gateway
// binaries. Only this struct may be used to read configuration; no
// component reads env, ini or any other config source directly.
type Config struct {
	AppEnv   string `env:"APP_ENV,default=dev"`
	AppName  string `env:"APP_NAME,default=orders_gateway"`
	AppDebug bool   `env:"APP_DEBUG,default=false"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`
	MetricsListenAddr      string `env:"METRICS_LISTEN_ADDR,default=:9091"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE,default=orders_gateway"`

	// Webhook authentication. The public URL is the exact externally
	// visible URL the provider signs against, proxies included.
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	PublicWebhookURL string `env:"PUBLIC_WEBHOOK_URL"`

	// Placeholder tenant until real authentication lands. Injected into
	// the webhook handler, never read from ambient state.
	DefaultDistributorID string `env:"DEFAULT_DISTRIBUTOR_ID,default=00000000-0000-0000-0000-000000000000"`

	AIEnabled         bool          `env:"AI_ENABLED,default=true"`
	AIServiceURL      string        `env:"AI_SERVICE_URL"`
	AIDispatchTimeout time.Duration `env:"AI_DISPATCH_TIMEOUT,default=5s"`

	SyncPollInterval time.Duration `env:"SYNC_POLL_INTERVAL,default=30s"`

	QueueName              string        `env:"QUEUE_NAME,default=ai_dispatch"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP,default=reconciler"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES,default=3"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=30s"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL,default=1s"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE,default=10"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ,default=true"`

	ReconcilerScanInterval time.Duration `env:"RECONCILER_SCAN_INTERVAL,default=60s"`
	ReconcilerMinAge       time.Duration `env:"RECONCILER_MIN_AGE,default=2m"`
	ReconcilerBatchLimit   int           `env:"RECONCILER_BATCH_LIMIT,default=100"`
	WorkerCount            int           `env:"WORKER_COUNT,default=4"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// RequireWebhook reports the missing settings the webhook binary cannot
// run without. Signature validation with an absent secret or an absent
// canonical URL must be a startup failure, not a per-request 500.
func (c *Config) RequireWebhook() error {
	if c.TwilioAuthToken == "" {
		return errors.New("TWILIO_AUTH_TOKEN is required")
	}
	if c.PublicWebhookURL == "" {
		return errors.New("PUBLIC_WEBHOOK_URL is required")
	}
	return nil
}

// RequireReconciler reports the missing settings the reconciliation job
// cannot run without.
func (c *Config) RequireReconciler() error {
	if c.AIServiceURL == "" {
		return errors.New("AI_SERVICE_URL is required")
	}
	if c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required")
	}
	return nil
}
