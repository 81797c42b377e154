package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	generativeAI "github.com/ogayu22918/Play-Plan/internal/api/generative_ai"
	"github.com/ogayu22918/Play-Plan/internal/api/poi"
	"github.com/ogayu22918/Play-Plan/internal/api/rules"
	"github.com/ogayu22918/Play-Plan/internal/api/suggest"
	"github.com/ogayu22918/Play-Plan/internal/api/weather"
)

//go:embed config.yml
var embeddedConfig []byte

// EnvPrefix prefixes environment overrides, e.g. PLAYPLAN_SERVER_PORT.
const EnvPrefix = "PLAYPLAN"

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		Port           string        `mapstructure:"port"`
		StaticDir      string        `mapstructure:"staticDir"`
		ReadTimeout    time.Duration `mapstructure:"readTimeout"`
		WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
		IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
		AllowedOrigins []string      `mapstructure:"allowedOrigins"`
		RateLimit      struct {
			Requests int           `mapstructure:"requests"`
			Window   time.Duration `mapstructure:"window"`
		} `mapstructure:"rateLimit"`
	} `mapstructure:"server"`
	Suggest    suggest.Config `mapstructure:"suggest"`
	Weather    weather.Config `mapstructure:"weather"`
	POI        poi.Config     `mapstructure:"poi"`
	Embeddings struct {
		CatalogPath   string        `mapstructure:"catalogPath"`
		MatrixPath    string        `mapstructure:"matrixPath"`
		WarmupTimeout time.Duration `mapstructure:"warmupTimeout"`
	} `mapstructure:"embeddings"`
	Generation generativeAI.Config `mapstructure:"generation"`
	Rules      rules.Thresholds    `mapstructure:"rules"`
}

func InitConfig() (Config, error) {
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config, nil
}
