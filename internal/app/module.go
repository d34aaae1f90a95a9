package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/iptv-crm/internal/app/api/server"
	"github.com/fatflowers/iptv-crm/internal/app/service/crm"
	"github.com/fatflowers/iptv-crm/internal/app/service/export"
	"github.com/fatflowers/iptv-crm/internal/app/service/importer"
	"github.com/fatflowers/iptv-crm/internal/app/service/lifecycle"
	"github.com/fatflowers/iptv-crm/internal/app/service/statistics"
	"github.com/fatflowers/iptv-crm/internal/app/service/sweep"
	"github.com/fatflowers/iptv-crm/internal/platform/db"
	"github.com/fatflowers/iptv-crm/internal/platform/lock"
	"github.com/fatflowers/iptv-crm/internal/platform/notify"
	"github.com/fatflowers/iptv-crm/internal/platform/store"
	"github.com/fatflowers/iptv-crm/pkg/config"
	"github.com/fatflowers/iptv-crm/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// Base provides configuration and logging.
var Base = fx.Options(
	logger.Module,
	config.Module,
)

// Storage provides the postgres backed stores.
var Storage = fx.Options(
	db.Module,
	store.Module,
)

// Services are the domain services. They only need Base and a *store.Stores.
var Services = fx.Options(
	lifecycle.Module,
	notify.Module,
	lock.Module,
	crm.Module,
	importer.Module,
	sweep.Module,
	statistics.Module,
	export.Module,
)

// Core is everything but the HTTP server.
var Core = fx.Options(
	Base,
	Storage,
	Services,
)

var Module = fx.Options(
	Core,
	server.Module,
)
