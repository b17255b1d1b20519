package service

import (
	"context"
	"database/sql"

	"github.com/ndewijer/investment-ledger/internal/database"
	"github.com/ndewijer/investment-ledger/internal/version"
)

// SystemService handles system-related operations
type SystemService struct {
	db *sql.DB
}

// NewSystemService creates a new SystemService
func NewSystemService(db *sql.DB) *SystemService {
	return &SystemService{
		db: db,
	}
}

// CheckHealth checks the health of the system
func (s *SystemService) CheckHealth() error {
	return database.HealthCheck(s.db)
}

func (s *SystemService) CheckVersion() string {
	return version.Version
}

// SchemaVersion returns the applied migration version of the store.
func (s *SystemService) SchemaVersion(_ context.Context) (int64, error) {
	return database.Version(s.db)
}
