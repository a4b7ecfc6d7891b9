package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "eventbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultKafkaNotificationsTopic = "eventbook.notifications"
	DefaultKafkaDLQTopic           = "eventbook.notifications.dlq"

	DefaultSweepSchedule   = "@hourly"
	DefaultSweepBatchLimit = 500

	DefaultPublicBaseURL = "http://localhost:8080"

	DefaultPaginationLimit = 100
)

var DefaultKafkaBrokers = []string{"localhost:9092"}
