package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvKafkaBrokers            = "KAFKA_BROKERS"
	EnvKafkaNotificationsTopic = "KAFKA_NOTIFICATIONS_TOPIC"
	EnvKafkaDLQTopic           = "KAFKA_DLQ_TOPIC"

	EnvSweepSchedule   = "SWEEP_SCHEDULE"
	EnvSweepBatchLimit = "SWEEP_BATCH_LIMIT"

	EnvPublicBaseURL = "PUBLIC_BASE_URL"
)
