package config

import (
	"flag"
	"os"
	"sync"
)

const (
	defaultServerAddress = ":8080"
	defaultDatabaseDSN   = ""
	defaultLogLevel      = "debug"
	defaultGatewayURL    = "https://sandbox.pay.example.com"
)

type Config struct {
	ServerAddr  string
	DatabaseDSN string
	LogLevel    string

	// payment gateway credentials, environment only
	GatewayBaseURL    string
	GatewayMerchantID string
	GatewaySecret     string
	GatewayReturnURL  string
	GatewayErrorURL   string

	// webhook policy: move business status to cancelled when payment fails
	FailedPaymentCancels bool

	AuthTokenKey string
}

var (
	once      sync.Once
	singleton *Config
)

// New returns new Config. It parses command line and environment variables only once.
func New() (*Config, error) {
	once.Do(func() {
		cfg := Config{}

		// initialize flags
		flag.StringVar(&cfg.ServerAddr, "a", defaultServerAddress, "shopcore server address")
		flag.StringVar(&cfg.DatabaseDSN, "d", defaultDatabaseDSN, "shopcore database DSN")
		flag.StringVar(&cfg.LogLevel, "l", defaultLogLevel, "log level")

		flag.Parse()

		// if environment variable is set, then using it
		if runAddrEnv := os.Getenv("RUN_ADDRESS"); runAddrEnv != "" {
			cfg.ServerAddr = runAddrEnv
		}
		if dataBaseURIEnv := os.Getenv("DATABASE_URI"); dataBaseURIEnv != "" {
			cfg.DatabaseDSN = dataBaseURIEnv
		}
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			cfg.LogLevel = logLevelEnv
		}

		cfg.GatewayBaseURL = defaultGatewayURL
		if v := os.Getenv("GATEWAY_BASE_URL"); v != "" {
			cfg.GatewayBaseURL = v
		}
		cfg.GatewayMerchantID = os.Getenv("GATEWAY_MERCHANT_ID")
		cfg.GatewaySecret = os.Getenv("GATEWAY_SECRET")
		cfg.GatewayReturnURL = os.Getenv("GATEWAY_RETURN_URL")
		cfg.GatewayErrorURL = os.Getenv("GATEWAY_ERROR_URL")

		cfg.FailedPaymentCancels = os.Getenv("FAILED_PAYMENT_CANCELS") == "true"

		cfg.AuthTokenKey = os.Getenv("AUTH_TOKEN_KEY")

		singleton = &cfg
	})

	return singleton, nil
}
