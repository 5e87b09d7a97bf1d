package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover-api"`
	Port                          int      `env:"PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PATCH,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Cart (source) REST admin API base URL
	CartBaseURL string `env:"CART_BASE_URL" env-default:"http://pricecloser.com/api/rest_admin"`
	// Cart REST admin id, sent with every request
	CartRestAdminID string `env:"CART_RESTADMIN_ID" env-default:""`
	// Base URL for admin deep links attached to CRM records
	CartAdminLinkBaseURL string `env:"CART_ADMIN_LINK_BASE_URL" env-default:"https://pricecloser.com/admin/index.php?route="`
	// Source name recorded on CRM appLinks and identity keys
	SourceName string `env:"SOURCE_NAME" env-default:"pricecloser.com"`

	// CRM (target) API base URL
	CRMBaseURL string `env:"CRM_BASE_URL" env-default:"https://api.cloze.com/v1"`
	// CRM account email used for API auth
	CRMEmail string `env:"CRM_EMAIL" env-default:""`
	// CRM API key
	CRMAPIKey string `env:"CRM_API_KEY" env-default:""`
	// Share created records with the whole team
	CRMShareToTeams bool `env:"CRM_SHARE_TO_TEAMS" env-default:"true"`
	// Tenant whose custom-field id mapping should be loaded
	CRMAccountID string `env:"CRM_ACCOUNT_ID" env-default:"nerevu"`

	// How many months back an unscoped pull reaches when no cursor exists
	ReportMonths int `env:"REPORT_MONTHS" env-default:"12"`

	// Read-after-write confirmation polling
	ConfirmTimeout      time.Duration `env:"CONFIRM_TIMEOUT" env-default:"30s"`
	ConfirmPollInterval time.Duration `env:"CONFIRM_POLL_INTERVAL" env-default:"2s"`

	// Redis host
	RedisHost string `env:"REDIS_HOST" env-default:"localhost"`
	// Redis port
	RedisPort int `env:"REDIS_PORT" env-default:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" env-default:"0"`

	// Kafka brokers (comma-separated)
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	// Kafka topic for order sync lifecycle events
	KafkaSyncTopic string `env:"KAFKA_SYNC_TOPIC" env-default:"order-sync-events"`
	// Kafka topic for sync failures
	KafkaErrorTopic string `env:"KAFKA_ERROR_TOPIC" env-default:"order-sync-errors"`

	// Redis Streams settings
	// Job queue stream name
	RedisStreamsJobQueue string `env:"REDIS_STREAMS_JOB_QUEUE" env-default:"clover:jobs"`
	// Consumer group name
	RedisStreamsConsumerGroup string `env:"REDIS_STREAMS_CONSUMER_GROUP" env-default:"clover-workers"`
	// Consumer name (defaults to hostname if empty)
	RedisStreamsConsumerName string `env:"REDIS_STREAMS_CONSUMER_NAME" env-default:""`
	// How long job status/result entries are kept
	JobResultTTL time.Duration `env:"JOB_RESULT_TTL" env-default:"720h"`

	// Scheduler settings
	// Enable the periodic unscoped pull
	SchedulerEnabled bool `env:"SCHEDULER_ENABLED" env-default:"false"`
	// Interval between unscoped pulls
	SchedulerPollInterval time.Duration `env:"SCHEDULER_POLL_INTERVAL" env-default:"3h"`

	// Tracing settings
	// Enable OTLP tracing export (set to true to send traces to collector)
	OTLPEnabled bool `env:"OTLP_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`

	// Auth Issuer URL
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	// Auth Client ID
	AuthClientID string `env:"AUTH_CLIENT_ID" env-default:""`
	// Auth Enabled - when false, allows X-Tenant-ID and X-User-ID headers for testing
	AuthEnabled bool `env:"AUTH_ENABLED" env-default:"false"`
}
