package main

import (
	"context"
	"flag"
	"log"

	"github.com/carverauto/fleetstream/pkg/config"
	"github.com/carverauto/fleetstream/pkg/core"
	"github.com/carverauto/fleetstream/pkg/lifecycle"
	"github.com/carverauto/fleetstream/pkg/logger"
)

func main() {
	configPath := flag.String("config", "/etc/fleetstream/devicemgr.json", "Path to config file")
	flag.Parse()

	ctx := context.Background()
	cfgLoader := config.NewConfig()

	var cfg core.Config

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

	svc, err := core.NewService(ctx, &cfg, logger.WithComponent("devicemgr"))
	if err != nil {
		log.Fatalf("Failed to initialize device management service: %v", err)
	}

	opts := &lifecycle.ServerOptions{
		ListenAddr:  cfg.ListenAddr,
		ServiceName: "devicemgr",
		Service:     svc,
		HTTPHandler: svc.Handler(),
	}

	if err := lifecycle.RunServer(ctx, opts); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
