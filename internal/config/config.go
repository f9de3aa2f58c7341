package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries every environment-derived setting the service needs.
// Adapters receive their slice of it at construction; nothing reads the
// environment after startup.
type Config struct {
	Port          int
	MySQLDSN      string
	RedisAddr     string
	MigrationsDir string

	WorkerCount int
	QueueSize   int

	Payment PaymentConfig
	Kafka   KafkaConfig
	SMTP    SMTPConfig
}

// PaymentConfig configures the FreedomPay adapter.
type PaymentConfig struct {
	MerchantID  string
	SecretKey   string
	Endpoint    string
	Currency    string
	TestingMode bool
	CheckURL    string
	ResultURL   string
	SuccessURL  string
	FailureURL  string
	Timeout     time.Duration
}

type KafkaConfig struct {
	Brokers string // comma-separated
	Topic   string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func Default() Config {
	return Config{
		Port:          8080,
		MySQLDSN:      "root:root@tcp(localhost:3306)/storefront?parseTime=true&multiStatements=true",
		RedisAddr:     "localhost:6379",
		MigrationsDir: "./migrations",
		WorkerCount:   4,
		QueueSize:     1024,
		Payment: PaymentConfig{
			Endpoint:    "https://api.freedompay.kg/init_payment.php",
			Currency:    "KGS",
			TestingMode: true,
			CheckURL:    "http://localhost:8080/orders/payment/check",
			ResultURL:   "http://localhost:8080/orders/payment/result",
			SuccessURL:  "http://localhost:8081/orders/success",
			FailureURL:  "http://localhost:8081/orders/failure",
			Timeout:     10 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: "localhost:9092",
			Topic:   "order_notifications",
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
	}
}

// FromEnv returns the defaults overridden by STOREFRONT_* variables.
func FromEnv() Config {
	c := Default()
	setString(&c.MySQLDSN, "STOREFRONT_MYSQL_DSN")
	setString(&c.RedisAddr, "STOREFRONT_REDIS_ADDR")
	setString(&c.MigrationsDir, "STOREFRONT_MIGRATIONS_DIR")
	setInt(&c.Port, "STOREFRONT_PORT")
	setInt(&c.WorkerCount, "STOREFRONT_WORKER_COUNT")
	setInt(&c.QueueSize, "STOREFRONT_QUEUE_SIZE")

	setString(&c.Payment.MerchantID, "STOREFRONT_PG_MERCHANT_ID")
	setString(&c.Payment.SecretKey, "STOREFRONT_PG_SECRET_KEY")
	setString(&c.Payment.Endpoint, "STOREFRONT_PG_ENDPOINT")
	setString(&c.Payment.Currency, "STOREFRONT_PG_CURRENCY")
	setBool(&c.Payment.TestingMode, "STOREFRONT_PG_TESTING_MODE")
	setString(&c.Payment.CheckURL, "STOREFRONT_PG_CHECK_URL")
	setString(&c.Payment.ResultURL, "STOREFRONT_PG_RESULT_URL")
	setString(&c.Payment.SuccessURL, "STOREFRONT_PG_SUCCESS_URL")
	setString(&c.Payment.FailureURL, "STOREFRONT_PG_FAILURE_URL")
	setDuration(&c.Payment.Timeout, "STOREFRONT_PG_TIMEOUT")

	setString(&c.Kafka.Brokers, "STOREFRONT_KAFKA_BROKERS")
	setString(&c.Kafka.Topic, "STOREFRONT_KAFKA_TOPIC")

	setString(&c.SMTP.Host, "STOREFRONT_SMTP_HOST")
	setInt(&c.SMTP.Port, "STOREFRONT_SMTP_PORT")
	setString(&c.SMTP.User, "STOREFRONT_SMTP_USER")
	setString(&c.SMTP.Password, "STOREFRONT_SMTP_PASS")
	setString(&c.SMTP.From, "STOREFRONT_SMTP_FROM")
	return c
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	switch os.Getenv(key) {
	case "1", "true", "TRUE":
		*dst = true
	case "0", "false", "FALSE":
		*dst = false
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
