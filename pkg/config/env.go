package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPostgresDSN         = "POSTGRES_DSN"
	EnvPostgresConnTimeout = "POSTGRES_CONN_TIMEOUT"
	EnvPostgresMaxConns    = "POSTGRES_MAX_CONNS"

	EnvRedisURL         = "REDIS_URL"
	EnvRedisAddr        = "REDIS_ADDR"
	EnvRedisUsername    = "REDIS_USERNAME"
	EnvRedisPassword    = "REDIS_PASSWORD"
	EnvRedisDB          = "REDIS_DB"
	EnvRedisConnTimeout = "REDIS_CONN_TIMEOUT"

	EnvReservationStore = "RESERVATION_STORE"
	EnvLockStore        = "LOCK_STORE"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvRequestTimeout  = "REQUEST_TIMEOUT"
	EnvMaxRequestSize  = "MAX_REQUEST_SIZE"
	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvIdempotencyTTL        = "IDEMPOTENCY_TTL"
	EnvPublicRateLimit       = "PUBLIC_RATE_LIMIT"
	EnvPublicRateLimitWindow = "PUBLIC_RATE_LIMIT_WINDOW"
	EnvRateLimitStore        = "RATE_LIMIT_STORE"

	EnvLockDefaultTTL       = "LOCK_DEFAULT_TTL"
	EnvLockMaxTTL           = "LOCK_MAX_TTL"
	EnvLockSweepInterval    = "LOCK_SWEEP_INTERVAL"
	EnvLockInternalPath     = "LOCK_INTERNAL_PATH"
	EnvPublicLockRetryDelay = "PUBLIC_LOCK_RETRY_DELAY"

	EnvDefaultReservationStatus = "DEFAULT_RESERVATION_STATUS"
	EnvDefaultTimeZone          = "DEFAULT_TIME_ZONE"
	EnvAlternativeSearchStep    = "ALTERNATIVE_SEARCH_STEP"
	EnvAlternativeSearchWindow  = "ALTERNATIVE_SEARCH_WINDOW"

	EnvSideEffectTimeout = "SIDE_EFFECT_TIMEOUT"
	EnvReminderOffsets   = "REMINDER_OFFSETS"

	EnvKafkaEnabled             = "KAFKA_ENABLED"
	EnvKafkaReservationTopic    = "KAFKA_RESERVATION_TOPIC"
	EnvKafkaReservationDLQTopic = "KAFKA_RESERVATION_DLQ_TOPIC"
)
