package config

import "time"

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "agendly"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPostgresConnTimeout = 5 * time.Second
	DefaultPostgresMaxConns    = 10

	DefaultRedisAddr        = "127.0.0.1:6379"
	DefaultRedisConnTimeout = 5 * time.Second

	DefaultReservationStore = StoreMongo
	DefaultLockStore        = StoreMongo

	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRequestTimeout  = 30 * time.Second
	DefaultMaxRequestSize  = 1 * 1024 * 1024 // 1MB
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultIdempotencyTTL        = 24 * time.Hour
	DefaultPublicRateLimit       = 20
	DefaultPublicRateLimitWindow = 1 * time.Minute
	DefaultRateLimitStore        = StoreMemory

	DefaultLockDefaultTTL       = 10 * time.Minute
	DefaultLockMaxTTL           = 30 * time.Minute
	DefaultLockSweepInterval    = 1 * time.Minute
	DefaultPublicLockRetryDelay = 250 * time.Millisecond

	DefaultReservationStatus       = "confirmed"
	DefaultTimeZone                = "UTC"
	DefaultAlternativeSearchStep   = 15 * time.Minute
	DefaultAlternativeSearchWindow = 24 * time.Hour
	MaxAlternativeSearchWindow     = 7 * 24 * time.Hour

	DefaultSideEffectTimeout = 10 * time.Second
	DefaultReminderOffsets   = "24h,1h"

	DefaultKafkaReservationTopic    = "reservations.events"
	DefaultKafkaReservationDLQTopic = "reservations.events.dlq"
)
