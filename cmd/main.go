package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"Recon340B/internal/appmanager"
	"Recon340B/internal/config"
)

func dsnParts() (user, pass, host, port, name string) {
	return os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_HOST"), os.Getenv("DB_PORT"), os.Getenv("DB_NAME")
}

// InitDB loads DB config from env vars. Without DB_HOST the library runs
// on files and no connection is opened.
func InitDB() (*sql.DB, *pgxpool.Pool, error) {
	user, pass, host, port, name := dsnParts()
	if host == "" {
		return nil, nil, nil
	}
	connStr := fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		user, pass, host, port, name,
	)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, nil, err
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, port, name)
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, pool, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	// Load .env for local dev
	_ = godotenv.Load("../.env")

	db, pool, err := InitDB()
	if err != nil {
		log.Fatal("failed to connect to DB:", err)
	}
	if db != nil {
		defer db.Close()
		defer pool.Close()
		appmanager.SetDB(db)
		appmanager.SetPgxPool(pool)
	}

	params, err := config.LoadParams(envOr("RECON_PARAMS", "../"+config.DefaultParamsFile))
	if err != nil {
		log.Fatal("failed to load params:", err)
	}
	appmanager.SetParams(params)

	manager := appmanager.NewAppManager()

	// Load service configs from YAML
	servicesCfg, err := appmanager.LoadServiceSequence(envOr("RECON_SERVICES", "../services.yaml"))
	if err != nil {
		log.Fatal("failed to load service sequence:", err)
	}

	if err := manager.AutoRegisterServices(servicesCfg); err != nil {
		log.Fatal("failed to register services:", err)
	}

	if err := manager.StartAll(); err != nil {
		manager.StopAll()
		log.Fatal("failed to start:", err)
	}

	// Graceful shutdown handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	if err := manager.StopAll(); err != nil {
		log.Println("failed to stop:", err)
	}
}
