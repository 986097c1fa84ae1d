package internal

import (
	"windcave/config"
	"windcave/entity"
)

// ConfigCredentials resolves merchant credentials from service configuration.
// This deployment serves a single merchant, so the scope id is accepted for
// contract compatibility and ignored.
type ConfigCredentials struct {
	conf *config.Config
}

func NewConfigCredentials(conf *config.Config) *ConfigCredentials {
	return &ConfigCredentials{conf: conf}
}

func (c *ConfigCredentials) GetCredentials(_ string) (*entity.Credentials, error) {
	merchant := c.conf.Merchant
	if merchant.Username == "" || merchant.ApiKey == "" {
		return nil, entity.ErrNotConfigured
	}
	return &entity.Credentials{
		Username: merchant.Username,
		ApiKey:   merchant.ApiKey,
		TestMode: merchant.TestMode,
	}, nil
}
