package pinghelper

import (
	"github.com/goharguide/partnerbot/internal/discord"
	"github.com/goharguide/partnerbot/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Helper, error) {
		repo := do.MustInvoke[repository.Repository](i)
		dc := do.MustInvoke[discord.Client](i)
		return NewHelper(repo, dc), nil
	})
}
