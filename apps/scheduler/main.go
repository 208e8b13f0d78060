package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/smsrent/internal/clock"
	"github.com/smallbiznis/smsrent/internal/config"
	"github.com/smallbiznis/smsrent/internal/events"
	"github.com/smallbiznis/smsrent/internal/migration"
	"github.com/smallbiznis/smsrent/internal/observability"
	"github.com/smallbiznis/smsrent/internal/phonenumber"
	"github.com/smallbiznis/smsrent/internal/provider"
	"github.com/smallbiznis/smsrent/internal/ratelimit"
	"github.com/smallbiznis/smsrent/internal/reconcile"
	"github.com/smallbiznis/smsrent/internal/recovery"
	"github.com/smallbiznis/smsrent/internal/scheduler"
	"github.com/smallbiznis/smsrent/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		ratelimit.Module,
		events.Module,
		recovery.Module,

		// Domain services required by scheduler
		provider.Module,
		phonenumber.Module,
		reconcile.Module,
		scheduler.Module,

		// No server module!
	)
	app.Run()
}

// Node 2 keeps scheduler-generated ids apart from the API's.
func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
