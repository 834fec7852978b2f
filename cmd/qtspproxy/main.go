package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/truecam/internal/buildinfo"
	"github.com/dmitrijs2005/truecam/internal/logging"
	"github.com/dmitrijs2005/truecam/internal/proxy"
	"github.com/dmitrijs2005/truecam/internal/proxy/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg := config.LoadConfig()
	if err := config.PromptSecret(cfg, os.Stdin, os.Stderr); err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	app := proxy.NewApp(cfg, logger)
	app.Run(context.Background())

}
