package main

import (
	"context"
	"flag"
	"os"

	"github.com/lucidchat/billing/internal/app"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	migrateOnly := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	ctx := context.Background()
	if *migrateOnly {
		if err := app.Migrate(ctx, *configPath); err != nil {
			log.Errorf("migrate failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := app.RunServer(ctx, *configPath); err != nil {
		log.Errorf("server exited: %v", err)
		os.Exit(1)
	}
}
