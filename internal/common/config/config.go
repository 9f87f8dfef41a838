package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Environment string `mapstructure:"environment"`

	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Rabbit   RabbitConfig   `mapstructure:"rabbitmq"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	Restaurant RestaurantConfig `mapstructure:"restaurant"`
}

type ServerConfig struct {
	Address string        `mapstructure:"address"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`
	Pass string `mapstructure:"password"`
	Name string `mapstructure:"database"`
}

type RabbitConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`
	Pass string `mapstructure:"password"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TrackingConfig struct {
	// ETA recomputation cadence; intentionally decoupled from location ticks.
	ETAInterval time.Duration `mapstructure:"eta_interval"`
	// Assumed average rider speed for ETA estimation.
	AvgSpeedKMH float64 `mapstructure:"avg_speed_kmh"`
}

type BillingConfig struct {
	// Fraction of the order total a by-item split must reach to be accepted.
	ItemSplitThreshold float64 `mapstructure:"item_split_threshold"`
	// Applied at intake when the request does not carry an explicit tax.
	TaxRate float64 `mapstructure:"tax_rate"`
	// Orders at or above this total (smallest currency unit) are auto-flagged priority.
	PriorityTotal int64 `mapstructure:"priority_total"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RestaurantConfig struct {
	ID      int64   `mapstructure:"id"`
	Name    string  `mapstructure:"name"`
	Phone   string  `mapstructure:"phone"`
	Address string  `mapstructure:"address"`
	Lat     float64 `mapstructure:"lat"`
	Lng     float64 `mapstructure:"lng"`
}

// Load reads configuration from config.yaml (searched in path, ./config and
// ./deploy), with RESTOPOS_-prefixed env variables taking precedence.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		// No file is fine: defaults plus env vars.
	}

	v.SetEnvPrefix("RESTOPOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.address", ":3000")
	v.SetDefault("server.timeout", "15s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.database", "restaurant_pos")

	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.user", "guest")
	v.SetDefault("rabbitmq.password", "guest")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("tracking.eta_interval", "30s")
	v.SetDefault("tracking.avg_speed_kmh", 25.0)

	v.SetDefault("billing.item_split_threshold", 0.99)
	v.SetDefault("billing.tax_rate", 0.08)
	v.SetDefault("billing.priority_total", 10000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("restaurant.id", 1)
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Pass, d.Host, d.Port, d.Name)
}

func (r RabbitConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", r.User, r.Pass, r.Host, r.Port)
}
