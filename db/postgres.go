package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/swapflow-hq/swapflow/api/models"
)

// PostgresDB implements the Database interface using PostgreSQL
type PostgresDB struct {
	db *sql.DB
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	postgresDB := &PostgresDB{db: db}

	if err := postgresDB.InitDB(context.Background()); err != nil {
		return nil, errors.Wrap(err, "failed to initialize database schema")
	}

	return postgresDB, nil
}

// NewPostgresDBFromConn wraps an existing connection; used by tests.
func NewPostgresDBFromConn(db *sql.DB) *PostgresDB {
	return &PostgresDB{db: db}
}

// Close closes the database connection
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// Ping checks if the database connection is alive
func (p *PostgresDB) Ping() error {
	return p.db.Ping()
}

// Exec executes a query without returning any rows
func (p *PostgresDB) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return p.db.ExecContext(ctx, query, args...)
}

// QueryRow executes a query that is expected to return at most one row
func (p *PostgresDB) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

// Query executes a query that returns rows
func (p *PostgresDB) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return p.db.QueryContext(ctx, query, args...)
}

const intentColumns = `id, onchain_id, source_chain, destination_chain, token, amount,
	recipient, sender, parsed_data, status, created_at, updated_at`

func scanIntent(row interface{ Scan(...interface{}) error }) (*models.Intent, error) {
	var (
		intent     models.Intent
		onchainID  sql.NullInt64
		sender     sql.NullString
		parsedData []byte
	)

	err := row.Scan(
		&intent.ID,
		&onchainID,
		&intent.SourceChain,
		&intent.DestinationChain,
		&intent.Token,
		&intent.Amount,
		&intent.Recipient,
		&sender,
		&parsedData,
		&intent.Status,
		&intent.CreatedAt,
		&intent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if onchainID.Valid {
		intent.OnchainID = uint64(onchainID.Int64)
	}
	if sender.Valid {
		intent.Sender = sender.String
	}
	intent.ParsedData = parsedData

	return &intent, nil
}

// GetIntent retrieves an intent by ID
func (p *PostgresDB) GetIntent(ctx context.Context, id string) (*models.Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM intents WHERE id = $1`

	intent, err := scanIntent(p.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrIntentNotFound, "id %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get intent")
	}

	return intent, nil
}

// GetIntentByOnchainID retrieves an intent by its on-chain numeric id.
func (p *PostgresDB) GetIntentByOnchainID(ctx context.Context, onchainID uint64) (*models.Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM intents WHERE onchain_id = $1`

	intent, err := scanIntent(p.db.QueryRowContext(ctx, query, int64(onchainID)))
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrIntentNotFound, "onchain id %d", onchainID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get intent by onchain id")
	}

	return intent, nil
}

// CreateIntent creates a new intent
func (p *PostgresDB) CreateIntent(ctx context.Context, intent *models.Intent) error {
	query := `
		INSERT INTO intents (
			id, onchain_id, source_chain, destination_chain, token, amount,
			recipient, sender, parsed_data, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now()
	}
	if intent.UpdatedAt.IsZero() {
		intent.UpdatedAt = time.Now()
	}

	var onchainID interface{}
	if intent.OnchainID != 0 {
		onchainID = int64(intent.OnchainID)
	}

	var parsedData interface{}
	if len(intent.ParsedData) > 0 {
		parsedData = []byte(intent.ParsedData)
	}

	_, err := p.db.ExecContext(ctx, query,
		intent.ID,
		onchainID,
		intent.SourceChain,
		intent.DestinationChain,
		intent.Token,
		intent.Amount,
		intent.Recipient,
		nullableString(intent.Sender),
		parsedData,
		intent.Status,
		intent.CreatedAt,
		intent.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create intent")
	}

	return nil
}

// UpdateIntentStatus updates the status of an intent
func (p *PostgresDB) UpdateIntentStatus(ctx context.Context, id string, status models.IntentStatus) error {
	query := `
		UPDATE intents
		SET status = $1,
			updated_at = NOW()
		WHERE id = $2
	`

	result, err := p.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return errors.Wrap(err, "failed to update intent status")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}

	if rowsAffected == 0 {
		return errors.Wrapf(ErrIntentNotFound, "id %s", id)
	}

	return nil
}

// SetIntentOnchainID records the numeric id assigned by on-chain validation.
func (p *PostgresDB) SetIntentOnchainID(ctx context.Context, id string, onchainID uint64) error {
	query := `
		UPDATE intents
		SET onchain_id = $1,
			updated_at = NOW()
		WHERE id = $2
	`

	result, err := p.db.ExecContext(ctx, query, int64(onchainID), id)
	if err != nil {
		return errors.Wrap(err, "failed to set intent onchain id")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}

	if rowsAffected == 0 {
		return errors.Wrapf(ErrIntentNotFound, "id %s", id)
	}

	return nil
}

// ListIntents retrieves intents with pagination, newest first.
func (p *PostgresDB) ListIntents(ctx context.Context, page, limit int) ([]*models.Intent, int, error) {
	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM intents`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count intents")
	}

	query := `
		SELECT ` + intentColumns + `
		FROM intents
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := p.db.QueryContext(ctx, query, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list intents")
	}
	defer rows.Close()

	var intents []*models.Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan intent")
		}
		intents = append(intents, intent)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "failed to iterate intents")
	}

	return intents, total, nil
}

// ListStaleIntents selects non-terminal intents not updated since olderThan,
// oldest first, bounded by limit. Used by the fallback poller.
func (p *PostgresDB) ListStaleIntents(ctx context.Context, olderThan time.Time, limit int) ([]*models.Intent, error) {
	query := `
		SELECT ` + intentColumns + `
		FROM intents
		WHERE status NOT IN ('completed', 'failed')
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	rows, err := p.db.QueryContext(ctx, query, olderThan, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list stale intents")
	}
	defer rows.Close()

	var intents []*models.Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan stale intent")
		}
		intents = append(intents, intent)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate stale intents")
	}

	return intents, nil
}

// GetLastProcessedBlock gets the last processed block number for a chain
func (p *PostgresDB) GetLastProcessedBlock(ctx context.Context, chainID uint64) (uint64, error) {
	query := `
		SELECT block_number
		FROM last_processed_blocks
		WHERE chain_id = $1
	`

	var blockNumber uint64
	err := p.db.QueryRowContext(ctx, query, chainID).Scan(&blockNumber)
	if err == sql.ErrNoRows {
		// No record yet: seed with 0 so the watcher starts from the chain head
		if err := p.UpdateLastProcessedBlock(ctx, chainID, 0); err != nil {
			return 0, errors.Wrap(err, "failed to create default last processed block")
		}
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to get last processed block")
	}

	return blockNumber, nil
}

// UpdateLastProcessedBlock updates the last processed block number for a
// chain. The cursor only moves forward.
func (p *PostgresDB) UpdateLastProcessedBlock(ctx context.Context, chainID uint64, blockNumber uint64) error {
	query := `
		INSERT INTO last_processed_blocks (chain_id, block_number, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (chain_id) DO UPDATE
		SET block_number = $2,
			updated_at = NOW()
		WHERE last_processed_blocks.block_number < $2
	`

	_, err := p.db.ExecContext(ctx, query, chainID, blockNumber)
	if err != nil {
		return errors.Wrap(err, "failed to update last processed block")
	}

	return nil
}

// InitDB initializes the database schema
func (p *PostgresDB) InitDB(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS intents (
			id VARCHAR(66) PRIMARY KEY,
			onchain_id BIGINT,
			source_chain BIGINT NOT NULL,
			destination_chain BIGINT NOT NULL,
			token VARCHAR(42) NOT NULL,
			amount VARCHAR(78) NOT NULL,
			recipient VARCHAR(42) NOT NULL,
			sender VARCHAR(42),
			parsed_data JSONB,
			status VARCHAR(20) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_intents_onchain_id
			ON intents(onchain_id) WHERE onchain_id IS NOT NULL;

		CREATE INDEX IF NOT EXISTS idx_intents_status_updated_at
			ON intents(status, updated_at);

		CREATE TABLE IF NOT EXISTS last_processed_blocks (
			chain_id BIGINT PRIMARY KEY,
			block_number BIGINT NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to create schema")
	}

	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
