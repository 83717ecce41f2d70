package config

import "strings"

// ApplyDefaults fills fields whose zero value means "use the default".
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Platform.Driver == "" {
		c.Platform.Driver = "telegram"
	}
	c.Platform.Driver = strings.ToLower(c.Platform.Driver)
	if c.Alerts.CancelMissing == "" {
		c.Alerts.CancelMissing = "error"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8085"
	}
}
