package partner

import (
	"github.com/goharguide/partnerbot/internal/config"
	"github.com/goharguide/partnerbot/internal/discord"
	"github.com/goharguide/partnerbot/internal/repository"
	"github.com/goharguide/partnerbot/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		dc := do.MustInvoke[discord.Client](i)
		wh := do.MustInvoke[webhook.Sender](i)
		return NewManager(cfg, repo, dc, wh), nil
	})
	do.Provide(injector, func(i do.Injector) (*Sweeper, error) {
		cfg := do.MustInvoke[*config.Config](i)
		manager := do.MustInvoke[*Manager](i)
		return NewSweeper(manager, cfg.SweepInterval()), nil
	})
}
