package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"local"`
	HTTP       HTTP       `yaml:"http"`
	Storage    Storage    `yaml:"storage"`
	Postgres   Postgres   `yaml:"postgres"`
	Redis      Redis      `yaml:"redis"`
	Kafka      Kafka      `yaml:"kafka"`
	Auth       Auth       `yaml:"auth"`
	Payment    Payment    `yaml:"payment"`
	URLs       URLs       `yaml:"urls"`
	Email      Email      `yaml:"email"`
	SMS        SMS        `yaml:"sms"`
	Push       Push       `yaml:"push"`
	Monitoring Monitoring `yaml:"monitoring"`
	Tracing    Tracing    `yaml:"tracing"`
	Tasks      Tasks      `yaml:"tasks"`
	Log        Log        `yaml:"log"`
}

type HTTP struct {
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:":9091"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"0s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"5s"`
}

type Storage struct {
	// memory или postgres
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
}

type Postgres struct {
	URL        string `yaml:"url" env:"DB_URL"`
	Migrations string `yaml:"migrations" env:"DB_MIGRATIONS" env-default:"file://migrations"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Kafka struct {
	Brokers      []string      `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic        string        `yaml:"topic" env:"KAFKA_TOPIC" env-default:"order-events"`
	PollInterval time.Duration `yaml:"poll_interval" env-default:"500ms"`
	BatchSize    int           `yaml:"batch_size" env-default:"50"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"change-me"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"JWT_TTL" env-default:"24h"`
}

type Payment struct {
	// paystack или sandbox
	Provider        string        `yaml:"provider" env:"PAYMENT_PROVIDER" env-default:"sandbox"`
	BaseURL         string        `yaml:"base_url" env:"PAYSTACK_BASE_URL" env-default:"https://api.paystack.co"`
	SecretKey       string        `yaml:"secret_key" env:"PAYSTACK_SECRET_KEY"`
	Currency        string        `yaml:"currency" env:"PAYMENT_CURRENCY" env-default:"GHS"`
	SignatureHeader string        `yaml:"signature_header" env:"PAYMENT_SIGNATURE_HEADER" env-default:"x-provider-signature"`
	Timeout         time.Duration `yaml:"timeout" env-default:"5s"`
}

type URLs struct {
	Frontend string `yaml:"frontend" env:"FRONTEND_URL" env-default:"http://localhost:3000"`
	Backend  string `yaml:"backend" env:"BACKEND_URL" env-default:"http://localhost:9091"`
}

type Email struct {
	APIURL       string        `yaml:"api_url" env:"SENDPULSE_API_URL" env-default:"https://api.sendpulse.com"`
	ClientID     string        `yaml:"client_id" env:"SENDPULSE_CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"SENDPULSE_CLIENT_SECRET"`
	From         string        `yaml:"from" env:"EMAIL_FROM" env-default:"no-reply@storefront.local"`
	FromName     string        `yaml:"from_name" env:"EMAIL_FROM_NAME" env-default:"Storefront"`
	SMTPHost     string        `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort     string        `yaml:"smtp_port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser     string        `yaml:"smtp_user" env:"SMTP_USER"`
	SMTPPassword string        `yaml:"smtp_password" env:"SMTP_PASSWORD"`
	Timeout      time.Duration `yaml:"timeout" env-default:"10s"`
}

type SMS struct {
	APIURL     string        `yaml:"api_url" env:"TWILIO_API_URL" env-default:"https://api.twilio.com"`
	AccountSID string        `yaml:"account_sid" env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string        `yaml:"auth_token" env:"TWILIO_AUTH_TOKEN"`
	From       string        `yaml:"from" env:"TWILIO_PHONE_NUMBER"`
	Timeout    time.Duration `yaml:"timeout" env-default:"10s"`
}

type Push struct {
	APIURL    string        `yaml:"api_url" env:"FCM_API_URL" env-default:"https://fcm.googleapis.com/fcm/send"`
	ServerKey string        `yaml:"server_key" env:"FCM_SERVER_KEY"`
	Timeout   time.Duration `yaml:"timeout" env-default:"10s"`
}

type Monitoring struct {
	Token string `yaml:"token" env:"MONITORING_TOKEN"`
}

type Tracing struct {
	Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"storefront"`
}

type Tasks struct {
	Workers int           `yaml:"workers" env:"TASK_WORKERS" env-default:"32"`
	Backlog int           `yaml:"backlog" env:"TASK_BACKLOG" env-default:"1024"`
	Timeout time.Duration `yaml:"timeout" env-default:"15s"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// IsProduction в production не отдаём детали ошибок клиенту
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/local.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exists: %v\n", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("error reading config: %v", err)
	}
	return cfg
}

// Load читает yaml и накладывает переменные окружения
func Load(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
