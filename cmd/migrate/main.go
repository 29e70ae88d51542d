package main

import (
	"context"
	"log"
	"time"

	"rag-chatbot-be/internal/config"
	"rag-chatbot-be/internal/model"
	"rag-chatbot-be/internal/repository/mongostore"
	"rag-chatbot-be/pkg/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	if cfg.Database.Connection != "" {
		migratePostgres(cfg.Database.Connection)
	} else {
		log.Println("Info: DB_CONNECTION_STRING is not set, skipping Postgres")
	}

	if cfg.Database.MessageLogStore == "mongo" {
		migrateMongo(cfg.Database.MongoURI, cfg.Database.MongoDatabase)
	}

	log.Println("Success: migration completed")
}

func migratePostgres(dsn string) {
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Enabling extensions...")
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		log.Printf("Warn: pgcrypto unavailable: %v. Continuing...", err)
	}
	if err := database.EnsureVectorExtension(db); err != nil {
		log.Fatalf("Error: pgvector extension unavailable: %v", err)
	}

	log.Println("Step 2: Running AutoMigrate...")
	models := []interface{}{
		&model.Identity{},
		&model.Session{},
		&model.Turn{},
		&model.Chunk{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	log.Println("Step 3: Creating indexes...")
	postMigrationSQL := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_turns_session_seq ON turns (session_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_owner_updated ON sessions (owner_id, updated_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks USING hnsw (embedding_value vector_cosine_ops);`,
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}
}

func migrateMongo(uri, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mdb, err := mongostore.Connect(ctx, uri, name)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer mdb.Client().Disconnect(context.Background())

	log.Println("Creating MongoDB indexes...")
	if err := mongostore.EnsureIndexes(ctx, mdb); err != nil {
		log.Fatalf("Error: Failed to create MongoDB indexes: %v", err)
	}
}
