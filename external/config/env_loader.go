package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/goharguide/partnerbot/internal/config"
)

type envConfig struct {
	Env                  string `env:"ENV" envDefault:"production"`
	DatabaseURL          string `env:"DATABASE_URL,required"`
	DiscordToken         string `env:"DISCORD_TOKEN,required"`
	DiscordGuildID       string `env:"DISCORD_GUILD_ID,required"`
	PairingChannelID     string `env:"PAIRING_CHANNEL_ID"`
	TranscriptChannelID  string `env:"TRANSCRIPT_CHANNEL_ID"`
	AutoCloseSeconds     int    `env:"AUTO_CLOSE_SECONDS" envDefault:"300"`
	SweepIntervalSeconds int    `env:"SWEEP_INTERVAL_SECONDS" envDefault:"60"`
	TranscriptWebhookURL string `env:"TRANSCRIPT_WEBHOOK_URL"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                  raw.Env,
		DatabaseURL:          raw.DatabaseURL,
		DiscordToken:         raw.DiscordToken,
		DiscordGuildID:       raw.DiscordGuildID,
		PairingChannelID:     raw.PairingChannelID,
		TranscriptChannelID:  raw.TranscriptChannelID,
		AutoCloseSeconds:     raw.AutoCloseSeconds,
		SweepIntervalSeconds: raw.SweepIntervalSeconds,
		TranscriptWebhookURL: raw.TranscriptWebhookURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
