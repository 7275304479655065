// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitConnection        `yaml:"rabbit_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	SMTPServer              `yaml:"smtp_server"`
	ResetPassword           `yaml:"reset_password"`
	Billing                 `yaml:"billing"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	User        string        `yaml:"user"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RabbitConnection структура для настройки подключения к rabbitmq
type RabbitConnection struct {
	RabbitAddress string        `yaml:"rabbit_address"`
	RabbitRetries int           `yaml:"rabbit_retries" env-default:"5"`
	RabbitDelay   time.Duration `yaml:"rabbit_delay" env-default:"3s"`
}

// JWTToken структура для работы с access- и refresh-токенами
type JWTToken struct {
	JWTSecretKey     string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL         time.Duration `yaml:"token_ttl" env-default:"168h"`           // 7 дней
	ExtendedTokenTTL time.Duration `yaml:"extended_token_ttl" env-default:"2160h"` // 90 дней
	RefreshTokenTTL  time.Duration `yaml:"refresh_token_ttl" env-default:"2160h"`  // 90 дней
}

// SMTPServer структура для настройки отправки почты
type SMTPServer struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort string `yaml:"smtp_port"`
	SMTPUser string `yaml:"smtp_user"`
	SMTPPass string `yaml:"smtp_pass" env:"SMTP_PASS"`
}

// ResetPassword структура для настройки восстановления пароля
type ResetPassword struct {
	ResetLinkBaseURL string        `yaml:"reset_link_base_url"`
	ResetTokenTTL    time.Duration `yaml:"reset_token_ttl" env-default:"1h"`
}

// Billing структура для настройки интеграции с платёжным провайдером
type Billing struct {
	BillingAPIURL  string `yaml:"billing_api_url"`
	BillingSecret  string `yaml:"billing_secret" env:"BILLING_SECRET"`
	WebhookSecret  string `yaml:"webhook_secret" env:"BILLING_WEBHOOK_SECRET"`
	PriceMonthly   string `yaml:"price_monthly"`
	PriceYearly    string `yaml:"price_yearly"`
	CheckoutOKURL  string `yaml:"checkout_ok_url"`
	CheckoutBadURL string `yaml:"checkout_bad_url"`
}

// MustLoad функция для загрузки конфига, возвращает конфиг, прочитанный из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
