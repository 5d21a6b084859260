package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"laju/internal/quote"
)

// Config is the runtime configuration of the API and CLI. Values come from
// the environment, optionally layered over a YAML file named by LAJU_CONFIG.
type Config struct {
	Port     string
	LogLevel string

	StoreBackend string
	WorkbookPath string
	DatabaseURL  string

	SessionBackend string
	SessionTTL     time.Duration
	RedisAddr      string
	RedisPassword  string

	KafkaBrokers []string
	KafkaTopic   string

	BankWebhookSecret   string
	StripeWebhookSecret string

	Rates RatesConfig
}

// RatesConfig overrides the tariff. Amounts are whole rupiah, percentages
// are basis points.
type RatesConfig struct {
	ExpressPerKg       int64
	CargoPerKg         int64
	FoodPerKg          int64
	ExpressInsuranceBP int64
	CargoInsuranceBP   int64
	FlatInsurance      int64
	CODThreshold       int64
	CODBelowBP         int64
	CODAboveBP         int64
}

const (
	BackendWorkbook = "workbook"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

func setDefaults(v *viper.Viper) {
	d := quote.DefaultRates()
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("store_backend", BackendWorkbook)
	v.SetDefault("workbook_path", "laju.xlsx")
	v.SetDefault("database_url", "")
	v.SetDefault("session_backend", BackendMemory)
	v.SetDefault("session_ttl", 12*time.Hour)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "laju.shipments")
	v.SetDefault("bank_webhook_secret", "")
	v.SetDefault("stripe_webhook_secret", "")

	v.SetDefault("rates.express_per_kg", rupiah(d.PerKg[quote.Express]))
	v.SetDefault("rates.cargo_per_kg", rupiah(d.PerKg[quote.Cargo]))
	v.SetDefault("rates.food_per_kg", rupiah(d.PerKg[quote.Food]))
	v.SetDefault("rates.express_insurance_bp", d.InsuranceBasisPoints[quote.Express])
	v.SetDefault("rates.cargo_insurance_bp", d.InsuranceBasisPoints[quote.Cargo])
	v.SetDefault("rates.flat_insurance", rupiah(d.FlatInsurance))
	v.SetDefault("rates.cod_threshold", rupiah(d.CODThreshold))
	v.SetDefault("rates.cod_below_bp", d.CODBelowBasisPoints)
	v.SetDefault("rates.cod_above_bp", d.CODAboveBasisPoints)
}

func rupiah(m quote.Money) int64 { return m.Cents() / 100 }

// Load reads configuration. Env keys are the upper-cased key names with dots
// replaced by underscores, e.g. RATES_EXPRESS_PER_KG.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("laju_config")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Port:                v.GetString("port"),
		LogLevel:            strings.ToLower(v.GetString("log_level")),
		StoreBackend:        strings.ToLower(v.GetString("store_backend")),
		WorkbookPath:        v.GetString("workbook_path"),
		DatabaseURL:         v.GetString("database_url"),
		SessionBackend:      strings.ToLower(v.GetString("session_backend")),
		SessionTTL:          v.GetDuration("session_ttl"),
		RedisAddr:           v.GetString("redis_addr"),
		RedisPassword:       v.GetString("redis_password"),
		KafkaBrokers:        splitList(v.GetString("kafka_brokers")),
		KafkaTopic:          v.GetString("kafka_topic"),
		BankWebhookSecret:   v.GetString("bank_webhook_secret"),
		StripeWebhookSecret: v.GetString("stripe_webhook_secret"),
		Rates: RatesConfig{
			ExpressPerKg:       v.GetInt64("rates.express_per_kg"),
			CargoPerKg:         v.GetInt64("rates.cargo_per_kg"),
			FoodPerKg:          v.GetInt64("rates.food_per_kg"),
			ExpressInsuranceBP: v.GetInt64("rates.express_insurance_bp"),
			CargoInsuranceBP:   v.GetInt64("rates.cargo_insurance_bp"),
			FlatInsurance:      v.GetInt64("rates.flat_insurance"),
			CODThreshold:       v.GetInt64("rates.cod_threshold"),
			CODBelowBP:         v.GetInt64("rates.cod_below_bp"),
			CODAboveBP:         v.GetInt64("rates.cod_above_bp"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks backend selections and their required settings.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendWorkbook:
		if strings.TrimSpace(c.WorkbookPath) == "" {
			return fmt.Errorf("WORKBOOK_PATH is required for the workbook store")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.SessionBackend {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis session store")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	return nil
}

// QuoteRates converts the configured tariff for quote.NewEngine.
func (c Config) QuoteRates() quote.Rates {
	r := c.Rates
	return quote.Rates{
		PerKg: map[quote.Tier]quote.Money{
			quote.Express: quote.Rupiah(r.ExpressPerKg),
			quote.Cargo:   quote.Rupiah(r.CargoPerKg),
			quote.Food:    quote.Rupiah(r.FoodPerKg),
		},
		InsuranceBasisPoints: map[quote.Tier]int64{
			quote.Express: r.ExpressInsuranceBP,
			quote.Cargo:   r.CargoInsuranceBP,
		},
		FlatInsurance:       quote.Rupiah(r.FlatInsurance),
		CODThreshold:        quote.Rupiah(r.CODThreshold),
		CODBelowBasisPoints: r.CODBelowBP,
		CODAboveBasisPoints: r.CODAboveBP,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
