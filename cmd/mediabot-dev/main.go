package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"mediabot/internal/app"
	"mediabot/internal/storage/ch"
	"mediabot/migrations"
)

func main() {
	ctx := context.Background()

	// Load .env first so the container settings below win
	_ = godotenv.Load()

	log.Println("Starting ClickHouse testcontainer...")

	clickhouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:latest",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword("devpassword"),
		clickhouse.WithDatabase("default"),
	)
	if err != nil {
		log.Fatalf("Failed to start ClickHouse container: %v", err)
	}

	// Ensure container cleanup on exit
	defer func() {
		log.Println("Stopping ClickHouse container...")
		if err := clickhouseContainer.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate container: %v", err)
		}
	}()

	host, err := clickhouseContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}

	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	if err != nil {
		log.Fatalf("Failed to get container port: %v", err)
	}

	log.Printf("ClickHouse started at %s:%s", host, port.Port())

	portNum, _ := strconv.Atoi(port.Port())
	db := ch.OpenSQL(ch.Options{
		Host:     host,
		Port:     portNum,
		Database: "default",
		User:     "default",
		Password: "devpassword",
	})
	if err := migrations.Up(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}
	db.Close()
	log.Println("Migrations applied")

	// Set environment variables for the application
	os.Setenv("CLICKHOUSE_HOST", host)
	os.Setenv("CLICKHOUSE_PORT", port.Port())
	os.Setenv("CLICKHOUSE_DATABASE", "default")
	os.Setenv("CLICKHOUSE_USER", "default")
	os.Setenv("CLICKHOUSE_PASSWORD", "devpassword")
	os.Setenv("CLICKHOUSE_USE_TLS", "false")
	os.Setenv("STORAGE_DRIVER", "clickhouse")
	os.Setenv("USE_MOCK_DB", "false")
	os.Setenv("WEBHOOK_MODE", "false")
	if os.Getenv("LOG_FORMAT") == "" {
		os.Setenv("LOG_FORMAT", "console")
	}

	// Set PORT for HTTP server if not already set
	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8080")
	}

	for _, key := range []string{"TELEGRAM_BOT_TOKEN", "GEMINI_API_KEY"} {
		if os.Getenv(key) == "" {
			log.Printf("⚠️  %s not set. Please set it in your .env file or environment.", key)
			log.Println("   The bot will fail to start without it.")
		}
	}

	log.Println("Starting application with ClickHouse backend...")
	fmt.Println()

	application, err := app.New()
	if err != nil {
		log.Printf("Failed to create application: %v", err)
		return
	}

	// Run blocks until SIGINT/SIGTERM and shuts the app down
	if err := application.Run(); err != nil {
		log.Printf("Application error: %v", err)
	}
}
