// Command settlectl runs settlement operations against the engine database
// as the SYSTEM principal.
package main

import (
	"fmt"
	"os"

	"github.com/Eursukkul/booking-microservice/carpool-service/config"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/app"
	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/database"
	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
)

func main() {
	root := newRootCmd(openEngine)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openEngine() (*app.Engine, func(), error) {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName+"-settlectl", cfg.LoggerLevel)

	db, err := database.NewPostgresDB(cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	eng, err := app.Build(cfg, db, log)
	if err != nil {
		return nil, nil, err
	}
	return eng, func() {
		eng.Close()
		_ = log.Sync()
	}, nil
}
