package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/internal/clock"
	"github.com/flowin/pdam/internal/config"
	"github.com/flowin/pdam/internal/migration"
	"github.com/flowin/pdam/internal/scheduler"
	"github.com/flowin/pdam/internal/server"
	"github.com/flowin/pdam/pkg/db"
	"github.com/flowin/pdam/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain modules are pulled in by the HTTP server.
		server.Module,
		scheduler.Module,
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
