package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/aslakhn/chargebill/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultPricePerKWh  = "3.00"
	defaultCurrency     = "nok"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the billing service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment
	Environment string

	// Charger operator API. Token exchange and resource calls may live
	// on different hosts, hence two addresses.
	OperatorAuthAddr string
	OperatorAPIAddr  string
	OperatorUsername string
	OperatorPassword string

	// Run against the in-process operator simulator instead of a real
	// operator. Meant for local runs and demos.
	OperatorSimulated bool

	// Fallback price per kWh when the operator reports none
	PricePerKWh string

	// Payment gateway
	GatewayAddr          string
	GatewaySecretKey     string
	WebhookSigningSecret string
	Currency             string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		Environment: defaultEnvironment,
		PricePerKWh: defaultPricePerKWh,
		Currency:    defaultCurrency,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setBool := func(o *bool) func(value string) {
		return func(value string) {
			if parsed, err := strconv.ParseBool(value); err == nil {
				*o = parsed
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":            setString(&c.ListenAddr),
		"DATABASE_URI":           setString(&c.DatabaseDSN),
		"SECRET_KEY":             setString(&c.SecretKey),
		"LOG_LEVEL":              setString(&c.LogLevel),
		"ENVIRONMENT":            setString(&c.Environment),
		"OPERATOR_AUTH_ADDRESS":  setString(&c.OperatorAuthAddr),
		"OPERATOR_API_ADDRESS":   setString(&c.OperatorAPIAddr),
		"OPERATOR_USERNAME":      setString(&c.OperatorUsername),
		"OPERATOR_PASSWORD":      setString(&c.OperatorPassword),
		"OPERATOR_SIMULATED":     setBool(&c.OperatorSimulated),
		"PRICE_PER_KWH":          setString(&c.PricePerKWh),
		"GATEWAY_ADDRESS":        setString(&c.GatewayAddr),
		"GATEWAY_SECRET_KEY":     setString(&c.GatewaySecretKey),
		"WEBHOOK_SIGNING_SECRET": setString(&c.WebhookSigningSecret),
		"CURRENCY":               setString(&c.Currency),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("chargebill", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.OperatorAuthAddr, "operator-auth", c.OperatorAuthAddr, "Operator token endpoint base address")
	fs.StringVar(&c.OperatorAPIAddr, "operator-api", c.OperatorAPIAddr, "Operator API base address")
	fs.StringVar(&c.OperatorUsername, "operator-username", c.OperatorUsername, "Operator account username")
	fs.StringVar(&c.OperatorPassword, "operator-password", c.OperatorPassword, "Operator account password")
	fs.BoolVar(&c.OperatorSimulated, "operator-simulated", c.OperatorSimulated, "Use the in-process operator simulator")
	fs.StringVarP(&c.PricePerKWh, "price", "p", c.PricePerKWh, "Fallback price per kWh")
	fs.StringVar(&c.GatewayAddr, "gateway", c.GatewayAddr, "Payment gateway base address")
	fs.StringVar(&c.GatewaySecretKey, "gateway-secret", c.GatewaySecretKey, "Payment gateway API secret key")
	fs.StringVar(&c.WebhookSigningSecret, "webhook-secret", c.WebhookSigningSecret, "Webhook signing secret")
	fs.StringVar(&c.Currency, "currency", c.Currency, "Payment currency code")

	return fs.Parse(args)
}
