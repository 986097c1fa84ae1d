// Package config provides configuration management for the Windcave payment
// service. Configuration can be loaded from YAML files and overridden by
// environment variables.
package config

import (
	"fmt"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the Windcave payment service.
// Values can be set via YAML configuration file or environment variables.
// Environment variables take precedence over YAML values.
type Config struct {
	IsDebug    bool   `yaml:"is_debug" env:"DEBUG" env-default:"false"`
	LogRecords int64  `yaml:"log_records" env:"LOG_RECORDS" env-default:"0"`
	PublicUrl  string `yaml:"public_url" env:"PUBLIC_URL" env-default:"http://localhost:5200"`
	Listen     struct {
		BindIP   string `yaml:"bind_ip" env:"BIND_IP" env-default:"0.0.0.0"`
		Port     string `yaml:"port" env:"PORT" env-default:"5200"`
		TLS      bool   `yaml:"tls_enabled" env:"TLS_ENABLED" env-default:"false"`
		CertFile string `yaml:"cert_file" env:"TLS_CERT_FILE" env-default:""`
		KeyFile  string `yaml:"key_file" env:"TLS_KEY_FILE" env-default:""`
	} `yaml:"listen"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env:"MONGO_ENABLED" env-default:"false"`
		Host     string `yaml:"host" env:"MONGO_HOST" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
		User     string `yaml:"user" env:"MONGO_USER" env-default:"admin"`
		Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:"pass"`
		Database string `yaml:"database" env:"MONGO_DATABASE" env-default:""`
	} `yaml:"mongo"`
	Merchant struct {
		Username string `yaml:"username" env:"MERCHANT_USERNAME" env-default:""`
		ApiKey   string `yaml:"api_key" env:"MERCHANT_API_KEY" env-default:""`
		TestMode bool   `yaml:"test_mode" env:"MERCHANT_TEST_MODE" env-default:"true"`
		// LiveUrl and TestUrl are the gateway origins; the REST resource
		// paths are fixed by the protocol
		LiveUrl string `yaml:"live_url" env:"MERCHANT_LIVE_URL" env-default:"https://sec.windcave.com"`
		TestUrl string `yaml:"test_url" env:"MERCHANT_TEST_URL" env-default:"https://uat.windcave.com"`
		// StoreCard requests tokenization on the first charge of a customer
		StoreCard          bool   `yaml:"store_card" env:"MERCHANT_STORE_CARD" env-default:"false"`
		IndicatorInitial   string `yaml:"indicator_initial" env:"MERCHANT_INDICATOR_INITIAL" env-default:"credentialonfileinitial"`
		IndicatorRecurring string `yaml:"indicator_recurring" env:"MERCHANT_INDICATOR_RECURRING" env-default:"credentialonfile"`
		AppleMerchantId    string `yaml:"apple_merchant_id" env:"MERCHANT_APPLE_ID" env-default:""`
		GoogleMerchantId   string `yaml:"google_merchant_id" env:"MERCHANT_GOOGLE_ID" env-default:""`
	} `yaml:"merchant"`
}

// ScriptOrigin returns the origin the drop-in script is served from for the
// given environment.
func (c *Config) ScriptOrigin(testMode bool) string {
	if testMode {
		return c.Merchant.TestUrl
	}
	return c.Merchant.LiveUrl
}

var instance *Config
var once sync.Once

// GetConfig loads configuration from the specified YAML file path.
// Configuration values can be overridden by environment variables.
// This function uses a singleton pattern and only loads the config once.
func GetConfig(path string) (*Config, error) {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("load config: %w; %s", err, desc)
			instance = nil
		}
	})
	return instance, err
}
