package main

import (
	"context"
	"log"

	"github.com/hyoshida/estatesync/internal/agent/cli"
	"github.com/hyoshida/estatesync/internal/agent/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
