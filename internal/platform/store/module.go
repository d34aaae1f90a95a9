package store

import "go.uber.org/fx"

// Module provides the SQL backed stores.
var Module = fx.Options(
	fx.Provide(NewGormStores),
)
