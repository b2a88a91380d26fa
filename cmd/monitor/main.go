package main

import (
	"context"
	"flag"
	"log"

	"github.com/carverauto/fleetstream/pkg/config"
	"github.com/carverauto/fleetstream/pkg/consumers/events"
	"github.com/carverauto/fleetstream/pkg/core/api"
	"github.com/carverauto/fleetstream/pkg/db"
	"github.com/carverauto/fleetstream/pkg/fanout"
	"github.com/carverauto/fleetstream/pkg/lifecycle"
	"github.com/carverauto/fleetstream/pkg/logger"
)

func main() {
	configPath := flag.String("config", "/etc/fleetstream/monitor.json", "Path to config file")
	flag.Parse()

	ctx := context.Background()
	cfgLoader := config.NewConfig()

	var cfg events.MonitorConfig

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logCfg := logger.DefaultConfig()
	if cfg.Logging != nil {
		logCfg = *cfg.Logging
	}

	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	monitorLog := logger.WithComponent("monitor")

	dbService, err := db.New(ctx, cfg.Database, monitorLog)
	if err != nil {
		log.Fatalf("Failed to initialize database service: %v", err)
	}

	hub := fanout.NewHub(monitorLog)
	broadcaster := fanout.New(hub, cfg.BroadcastQueueSize, monitorLog)

	svc, err := events.NewService(&cfg, dbService, hub, broadcaster, monitorLog)
	if err != nil {
		log.Fatalf("Failed to initialize monitoring service: %v", err)
	}

	opts := &lifecycle.ServerOptions{
		ListenAddr:  cfg.ListenAddr,
		ServiceName: "monitor",
		Service:     svc,
		HTTPHandler: api.NewMonitorServer(dbService, hub, monitorLog),
	}

	if err := lifecycle.RunServer(ctx, opts); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
