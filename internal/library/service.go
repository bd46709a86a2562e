package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"Recon340B/internal/config"
	"Recon340B/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Backend names accepted in the library service config.
const (
	BackendCSV      = "csv"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendPgx      = "pgx"
)

// Service owns the log catalog and the document archive for the process.
type Service struct {
	config map[string]interface{}
	db     *sql.DB
	pool   *pgxpool.Pool
	owned  *sql.DB

	Catalog   *Catalog
	Documents *Documents
}

func NewService(cfg map[string]interface{}, db *sql.DB, pool *pgxpool.Pool) *Service {
	return &Service{config: cfg, db: db, pool: pool}
}

func (s *Service) Name() string {
	return "library"
}

func (s *Service) str(key, def string) string {
	if v, ok := s.config[key].(string); ok && v != "" {
		return v
	}
	return def
}

func (s *Service) Start() error {
	ctx := context.Background()
	folder := s.str("folder_path", config.DefaultLibraryFolder)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return err
	}

	var open Opener
	backend := s.str("backend", BackendCSV)
	switch backend {
	case BackendCSV:
		open = CSVOpener(folder)
	case BackendSQLite:
		db, err := sql.Open(SQLite.Driver(), s.str("sqlite_path", filepath.Join(folder, "library.db")))
		if err != nil {
			return err
		}
		s.owned = db
		open = SQLOpener(db, SQLite)
	case BackendPostgres:
		if s.db == nil {
			return errors.New("library: postgres backend needs a database connection")
		}
		open = SQLOpener(s.db, Postgres)
	case BackendPgx:
		if s.pool == nil {
			return errors.New("library: pgx backend needs a connection pool")
		}
		open = PgxOpener(s.pool)
	default:
		return fmt.Errorf("library: unknown backend %q", backend)
	}

	s.Catalog = NewCatalog(open)
	index, err := s.Catalog.Log(ctx, config.LogDocumentIndex)
	if err != nil {
		return err
	}
	s.Documents = NewDocuments(filepath.Join(folder, "documents"), index)
	logger.L().Info("library started", zap.String("backend", backend), zap.String("folder", folder))
	return nil
}

func (s *Service) Stop() error {
	if s.owned != nil {
		return s.owned.Close()
	}
	return nil
}
