package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env                  string
	DatabaseURL          string
	DiscordToken         string
	DiscordGuildID       string
	PairingChannelID     string
	TranscriptChannelID  string
	AutoCloseSeconds     int
	SweepIntervalSeconds int
	TranscriptWebhookURL string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.AutoCloseSeconds <= 0 {
		return fmt.Errorf("AUTO_CLOSE_SECONDS must be positive, got %d", c.AutoCloseSeconds)
	}
	if c.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be positive, got %d", c.SweepIntervalSeconds)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "DISCORD_GUILD_ID", value: c.DiscordGuildID},
	}
}

func (c *Config) AutoCloseThreshold() time.Duration {
	return time.Duration(c.AutoCloseSeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
