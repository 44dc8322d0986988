package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/swapflow-hq/swapflow/api/models"
)

// ErrIntentNotFound is returned when an intent lookup matches no row.
var ErrIntentNotFound = errors.New("intent not found")

// Database is the persistence collaborator consumed by the watcher, the
// message tracker, the fallback poller and the fanout hub.
type Database interface {
	Close() error
	Ping() error
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

	CreateIntent(ctx context.Context, intent *models.Intent) error
	GetIntent(ctx context.Context, id string) (*models.Intent, error)
	GetIntentByOnchainID(ctx context.Context, onchainID uint64) (*models.Intent, error)
	ListIntents(ctx context.Context, page, limit int) ([]*models.Intent, int, error)
	UpdateIntentStatus(ctx context.Context, id string, status models.IntentStatus) error
	SetIntentOnchainID(ctx context.Context, id string, onchainID uint64) error
	ListStaleIntents(ctx context.Context, olderThan time.Time, limit int) ([]*models.Intent, error)

	GetLastProcessedBlock(ctx context.Context, chainID uint64) (uint64, error)
	UpdateLastProcessedBlock(ctx context.Context, chainID uint64, blockNumber uint64) error

	InitDB(ctx context.Context) error
}
