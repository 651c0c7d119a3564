package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"reviewdesk.org/internal/auth"
	"reviewdesk.org/internal/ids"
	"reviewdesk.org/internal/migrate"
)

func main() {
	log.SetFlags(0)
	var (
		dsn            = flag.String("dsn", os.Getenv("REVIEWDESK_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "migrations", "Path to SQL migrations")
		seedsPath      = flag.String("seeds", "migrations/seeds", "Path to SQL seeds")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or REVIEWDESK_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status|create-admin]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, *migrationsPath, *seedsPath)

	switch flag.Arg(0) {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		if err == nil {
			reportApplied(applied)
		}
	case "down":
		var name string
		name, err = mgr.Down(ctx)
		if err == nil {
			log.Printf("rolled back %s", name)
		}
	case "seed":
		var applied []string
		applied, err = mgr.Seed(ctx)
		if err == nil {
			reportApplied(applied)
		}
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	case "create-admin":
		err = createAdmin(ctx, db)
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

func reportApplied(applied []string) {
	if len(applied) == 0 {
		log.Print("nothing to apply")
		return
	}
	for _, name := range applied {
		log.Printf("applied %s", name)
	}
}

// createAdmin bootstraps the first administrator account. The password is
// hashed here rather than shipped as a precomputed hash in a seed file.
func createAdmin(ctx context.Context, db *sql.DB) error {
	email := strings.TrimSpace(strings.ToLower(os.Getenv("REVIEWDESK_ADMIN_EMAIL")))
	password := os.Getenv("REVIEWDESK_ADMIN_PASSWORD")
	name := strings.TrimSpace(os.Getenv("REVIEWDESK_ADMIN_NAME"))
	if email == "" || password == "" {
		return errors.New("REVIEWDESK_ADMIN_EMAIL and REVIEWDESK_ADMIN_PASSWORD are required")
	}
	if name == "" {
		name = "Administrator"
	}

	hash, err := auth.HashSecret(password)
	if err != nil {
		return err
	}
	added, err := auth.NewPGStore(db).EnsureAdmin(ctx, ids.New(), email, name, hash)
	if err != nil {
		return err
	}
	if !added {
		log.Printf("admin %s already exists, nothing to do", email)
		return nil
	}
	log.Printf("created admin %s", email)
	return nil
}
