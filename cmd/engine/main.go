package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowgrid-go/internal/server"
	"github.com/flowgrid-go/pkg/config"
	"github.com/flowgrid-go/pkg/logger"
)

func main() {
	cfg, err := config.Load("engine")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Logger)

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to build server", "error", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("Server stopped unexpectedly", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down engine...")

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", "error", err)
	}

	log.Info("Engine exited")
}
