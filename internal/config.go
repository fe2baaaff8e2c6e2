package internal

import "time"

type Config struct {
	Host                 string        `env:"HOST,required=true"`
	Port                 int           `env:"PORT,required=true"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	NumberOfWorkers      int           `env:"NUMBER_OF_WORKERS,required=true"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	ReplyTimeout         time.Duration `env:"REPLY_TIMEOUT,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true"`
	LatencyThreshold     time.Duration `env:"LATENCY_THRESHOLD,required=true"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,required=true"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,required=true"`
	MaxUploadBytes       int64         `env:"MAX_UPLOAD_BYTES,required=true"`
	KnowledgeLimit       int           `env:"KNOWLEDGE_LIMIT,default=3"`

	OpenRouterAPIKey  string        `env:"OPENROUTER_API_KEY,required=true"`
	OpenRouterBaseURL string        `env:"OPENROUTER_BASE_URL"`
	Model             string        `env:"MODEL,required=true"`
	VisionModel       string        `env:"VISION_MODEL,required=true"`
	LLMTimeout        time.Duration `env:"LLM_TIMEOUT,required=true"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
}
