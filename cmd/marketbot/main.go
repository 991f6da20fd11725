package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/awilliams/predmarket/pkg/registry"
	"github.com/awilliams/predmarket/pkg/store"
)

func main() {
	configPath := flag.String("config", "configs/marketbot.yaml", "path to config file")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Str("dbPath", cfg.DBPath).Str("tenant", cfg.Tenant).Msg("starting marketbot")

	if err := store.EnsureMigrations(cfg.DBPath); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}
	st, err := store.NewSqliteStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	console := newConsole(registry.NewManager(st), cfg.Tenant, os.Stdin, os.Stdout)
	if err := console.run(); err != nil {
		log.Fatal().Err(err).Msg("console error")
	}
}
