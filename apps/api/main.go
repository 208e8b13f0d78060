package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/smsrent/internal/clock"
	"github.com/smallbiznis/smsrent/internal/config"
	"github.com/smallbiznis/smsrent/internal/events"
	"github.com/smallbiznis/smsrent/internal/observability"
	"github.com/smallbiznis/smsrent/internal/phonenumber"
	"github.com/smallbiznis/smsrent/internal/provider"
	"github.com/smallbiznis/smsrent/internal/ratelimit"
	"github.com/smallbiznis/smsrent/internal/reconcile"
	"github.com/smallbiznis/smsrent/internal/recovery"
	"github.com/smallbiznis/smsrent/internal/server"
	"github.com/smallbiznis/smsrent/internal/webhook"
	"github.com/smallbiznis/smsrent/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		ratelimit.Module,
		events.Module,
		recovery.Module,

		// Core dependencies for API
		provider.Module,
		phonenumber.Module,
		reconcile.Module,
		webhook.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
