package config

import (
	"bytes"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppCfg struct {
	Name         string
	Env          string
	Host         string
	Port         int
	AllowOrigins []string
}

type AuthCfg struct {
	JWTSecret string
	// Leeway tolerated when checking exp, in seconds.
	LeewaySec int
}

type LogCfg struct {
	Level string
}

type DBCfg struct {
	DSN         string
	MaxOpen     int
	MaxIdle     int
	AutoMigrate bool
}

type RedisCfg struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	StatsTTLSec int
}

type MQCfg struct {
	URL      string
	Exchange string
}

type S3Cfg struct {
	Endpoint         string
	Region           string
	AccessKey        string
	SecretKey        string
	Bucket           string
	UsePathStyle     bool
	PresignExpireSec int
	SSE              string
}

type TelemetryCfg struct {
	Enabled      bool
	OtlpEndpoint string
	SampleRatio  float64
}

type LLMCfg struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
}

type ChatCfg struct {
	HistoryLimit    int
	ModelTimeoutSec int
	SerializeTurns  bool
	LockTTLSec      int
}

type Config struct {
	App       AppCfg
	Auth      AuthCfg
	Log       LogCfg
	Database  DBCfg
	Redis     RedisCfg
	RabbitMQ  MQCfg
	S3        S3Cfg
	Telemetry TelemetryCfg
	LLM       LLMCfg
	Chat      ChatCfg
}

// ModelTimeout bounds a single generation phase.
func (c ChatCfg) ModelTimeout() time.Duration {
	if c.ModelTimeoutSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.ModelTimeoutSec) * time.Second
}

func (c ChatCfg) LockTTL() time.Duration {
	if c.LockTTLSec <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.LockTTLSec) * time.Second
}

func (c RedisCfg) StatsTTL() time.Duration {
	if c.StatsTTLSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.StatsTTLSec) * time.Second
}

func Load() (*Config, error) {
	base := viper.New()
	base.SetConfigName("config")
	base.SetConfigType("yaml")
	base.AddConfigPath("./configs")
	base.AddConfigPath(".")
	base.AutomaticEnv()
	base.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	base.SetEnvPrefix("APP") // e.g. APP_AUTH_JWTSECRET -> auth.jwtSecret

	// defaults apply whether or not a file exists
	setDefaults(base)

	if err := base.ReadInConfig(); err == nil {
		// expand ${ENV} once before parsing
		path := base.ConfigFileUsed()
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		expanded := os.ExpandEnv(string(raw))

		v := viper.New()
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return nil, err
		}
		v.AutomaticEnv()
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.SetEnvPrefix("APP")
		setDefaults(v)

		cfg := new(Config)
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	// no file: env + defaults only
	cfg := new(Config)
	if err := base.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults lists every key; viper only unmarshals APP_* env overrides for
// keys it already knows.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "todo-api")
	v.SetDefault("app.env", "debug")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8000)
	v.SetDefault("app.allowOrigins", []string{"http://localhost:3000"})
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.leewaySec", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("database.dsn", "file:todo.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	v.SetDefault("database.maxOpen", 20)
	v.SetDefault("database.maxIdle", 5)
	v.SetDefault("database.autoMigrate", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("redis.statsTTLSec", 30)
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "todo.events")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.accessKey", "")
	v.SetDefault("s3.secretKey", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.sse", "")
	v.SetDefault("s3.region", "auto")
	v.SetDefault("s3.usePathStyle", true)
	v.SetDefault("s3.presignExpireSec", 900)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlpEndpoint", "")
	v.SetDefault("telemetry.sampleRatio", 1.0)
	v.SetDefault("llm.baseURL", "")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.maxTokens", 500)
	v.SetDefault("llm.maxRetries", 2)
	v.SetDefault("chat.historyLimit", 10)
	v.SetDefault("chat.modelTimeoutSec", 60)
	v.SetDefault("chat.serializeTurns", false)
	v.SetDefault("chat.lockTTLSec", 120)
}
