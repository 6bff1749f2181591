package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/goharguide/partnerbot/external/config"
	"github.com/goharguide/partnerbot/external/discord"
	repositoryimpl "github.com/goharguide/partnerbot/external/repository"
	webhookimpl "github.com/goharguide/partnerbot/external/webhook"
	"github.com/goharguide/partnerbot/internal/config"
	discordpkg "github.com/goharguide/partnerbot/internal/discord"
	"github.com/goharguide/partnerbot/internal/partner"
	"github.com/goharguide/partnerbot/internal/pinghelper"
	"github.com/samber/do/v2"
)

const (
	discordConnectTimeout = 20 * time.Second
	startupTimeout        = 30 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching discord bot")
	runBot(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	partner.RegisterDI(injector)
	pinghelper.RegisterDI(injector)

	return injector
}

func runBot(cfg *config.Config, injector do.Injector) {
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		slog.Error("failed to resolve discord client", "error", err)
		os.Exit(1)
	}
	manager, err := do.Invoke[*partner.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve partner manager", "error", err)
		os.Exit(1)
	}
	sweeper, err := do.Invoke[*partner.Sweeper](injector)
	if err != nil {
		slog.Error("failed to resolve idle sweeper", "error", err)
		os.Exit(1)
	}
	helper, err := do.Invoke[*pinghelper.Helper](injector)
	if err != nil {
		slog.Error("failed to resolve ping helper", "error", err)
		os.Exit(1)
	}

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancelConnect()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(connectCtx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}()

	botUserID, err := dc.GetBotUserID()
	if err != nil {
		slog.Error("failed to resolve bot user id", "error", err)
		os.Exit(1)
	}
	manager.SetBotUserID(botUserID)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), startupTimeout)
	slog.Info("startup: recovering persisted state")
	if err := manager.Recover(startupCtx); err != nil {
		cancelStartup()
		slog.Error("state recovery failed", "error", err)
		os.Exit(1)
	}
	if err := helper.Reload(startupCtx); err != nil {
		cancelStartup()
		slog.Error("ping helper load failed", "error", err)
		os.Exit(1)
	}
	cancelStartup()

	defs := append(partner.CommandDefinitions(), pinghelper.CommandDefinitions()...)
	if err := dc.UpsertGuildCommands(cfg.DiscordGuildID, defs); err != nil {
		slog.Error("failed to upsert slash commands", "error", err, "guild_id", cfg.DiscordGuildID)
		os.Exit(1)
	}

	dc.RegisterCommandHandler(manager.HandleCommand)
	dc.RegisterCommandHandler(helper.HandleCommand)
	dc.RegisterMessageCreateHandler(manager.HandleMessageCreate)
	slog.Info("discord handlers registered", "guild_id", cfg.DiscordGuildID, "commands", []string{"findpartner", "close", "ping"})

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sweeper.Run(sweepCtx)

	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering discord run loop")
		if err := dc.Run(); err != nil {
			slog.Error("discord run failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}
}
