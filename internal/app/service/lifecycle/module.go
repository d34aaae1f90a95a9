package lifecycle

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/iptv-crm/pkg/config"
	"github.com/fatflowers/iptv-crm/pkg/errs"
)

// New builds the engine from config, resolving the configured timezone.
func New(cfg *config.Config) (*Engine, error) {
	loc := time.UTC
	if tz := cfg.Lifecycle.Timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, errs.Configuration("lifecycle.timezone", err.Error())
		}
		loc = l
	}
	return NewEngine(cfg.Lifecycle.ExpiringSoonDays, loc), nil
}

var Module = fx.Options(
	fx.Provide(New),
)
