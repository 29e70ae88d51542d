package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rag-chatbot-be/internal/bootstrap"
	"rag-chatbot-be/internal/config"
	"rag-chatbot-be/internal/server"
	"rag-chatbot-be/internal/tracer"
	"rag-chatbot-be/pkg/database"

	"gorm.io/gorm"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		log.Printf("Warning: %v (tracing disabled)", err)
	}
	defer shutdownTracer(context.Background())

	// Postgres is optional when every backend runs on mongo or memory.
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDB(database.GormConfig{
			DSN:   cfg.Database.Connection,
			Debug: cfg.App.Environment != "production",
		})
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		gormDB = db
	}

	container, err := bootstrap.NewContainer(ctx, gormDB, cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer container.Close()

	if err := container.ConsumerService.Consume(ctx); err != nil {
		container.Logger.Error("MAIN", "Chat event consumer failed to start", map[string]interface{}{
			"error": err.Error(),
		})
	}

	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		container.Logger.Info("MAIN", "Shutting down", nil)
		if err := srv.Shutdown(shutdownTimeout); err != nil {
			container.Logger.Warn("MAIN", "Shutdown did not finish cleanly", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	if err := srv.Run(); err != nil {
		container.Logger.Error("MAIN", "Server stopped", map[string]interface{}{"error": err.Error()})
	}
}
