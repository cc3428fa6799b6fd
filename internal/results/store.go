// Package results persists per-date selection and backtest outputs.
// ⭐ SSOT: 결과 저장/조회는 여기서만
package results

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/pkg/config"
	"github.com/wonny/zscreen/pkg/database"
)

// ErrNotFound is returned when a date has no complete selection
var ErrNotFound = errors.New("result not found")

// Compile-time interface checks.
var (
	_ contracts.ResultStore = (*FileStore)(nil)
	_ contracts.ResultStore = (*SQLiteStore)(nil)
	_ contracts.ResultStore = (*PostgresStore)(nil)
)

// Open returns the result store selected by cfg.ResultBackend
func Open(ctx context.Context, cfg *config.Config) (contracts.ResultStore, error) {
	switch cfg.ResultBackend {
	case "postgres":
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s, err := NewPostgresStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.ResultsDir, "zscreen.db")
		}
		return NewSQLiteStore(path)
	case "file", "":
		return NewFileStore(cfg.ResultsDir)
	default:
		return nil, fmt.Errorf("unknown result backend %q", cfg.ResultBackend)
	}
}
