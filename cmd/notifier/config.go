package main

import (
	"time"

	"github.com/dmitrymomot/libraryops/pkg/email"
	"github.com/dmitrymomot/libraryops/pkg/httpserver"
	"github.com/dmitrymomot/libraryops/pkg/mongo"
	"github.com/dmitrymomot/libraryops/pkg/pg"
	"github.com/dmitrymomot/libraryops/pkg/redis"
	"github.com/dmitrymomot/libraryops/svc/events"
)

// AppConfig is the full process configuration. Empty connection settings
// switch the matching backend to its in-memory or disabled form.
type AppConfig struct {
	AppName   string `env:"APP_NAME" envDefault:"notifier"`
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`

	SchedulerInterval    time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"60s"`
	SchedulerBatchSize   int           `env:"SCHEDULER_BATCH_SIZE" envDefault:"100"`
	SchedulerConcurrency int           `env:"SCHEDULER_CONCURRENCY" envDefault:"10"`
	ExpirySweepAt        string        `env:"EXPIRY_SWEEP_AT" envDefault:"03:00"`
	DefaultMaxRetries    int           `env:"DEFAULT_MAX_RETRIES" envDefault:"3"`

	BulkChunkSize     int           `env:"BULK_CHUNK_SIZE" envDefault:"100"`
	BulkMaxRecipients int           `env:"BULK_MAX_RECIPIENTS" envDefault:"10000"`
	BulkChunkPause    time.Duration `env:"BULK_CHUNK_PAUSE" envDefault:"100ms"`
	AnnouncementVia   string        `env:"ANNOUNCEMENT_CHANNEL" envDefault:"IN_APP"`

	TemplateSeedFile  string `env:"TEMPLATE_SEED_FILE"`
	EventMappingsFile string `env:"EVENT_MAPPINGS_FILE"`

	FirebaseCredentialsFile string        `env:"FIREBASE_CREDENTIALS_FILE"`
	SMSGatewayURL           string        `env:"SMS_GATEWAY_URL"`
	SMSGatewayToken         string        `env:"SMS_GATEWAY_TOKEN"`
	WebhookSigningSecret    string        `env:"WEBHOOK_SIGNING_SECRET"`
	ChannelRatePerSecond    float64       `env:"CHANNEL_RATE_PER_SECOND" envDefault:"50"`
	ChannelTimeout          time.Duration `env:"CHANNEL_TIMEOUT" envDefault:"10s"`
	InAppMaxUsers           int           `env:"IN_APP_MAX_USERS" envDefault:"10000"`

	PreferenceCacheTTL time.Duration `env:"PREFERENCE_CACHE_TTL" envDefault:"10m"`

	Postgres pg.Config
	Redis    redis.Config
	Mongo    mongo.Config
	Email    email.Config
	HTTP     httpserver.Config
	AMQP     events.Config
}
