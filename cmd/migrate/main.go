package main

import (
	"context"
	"log"
	"os"
	"time"

	"herald/internal/platform/db/migrations"
)

// Migration process entrypoint. Runs the embedded migrations against
// POSTGRES_DSN and exits.
func main() {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := migrations.Apply(ctx, dsn, nil); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	log.Println("migrations complete")
}
