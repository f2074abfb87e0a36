package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/shop-fulfillment/internal/model"
)

// Collections with a fixed document type. Any other collection name is a
// product projection and decodes as model.Product.
const (
	CollectionOrders    = "orders"
	CollectionAlerts    = "stock_alerts"
	CollectionOperators = "operators"
)

// PostgresStore implements DocStore on a single documents table with
// jsonb payloads keyed by (collection, id).
type PostgresStore struct {
	db *sql.DB
}

// ConnectPostgres opens and pings a PostgreSQL connection.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the documents table if it does not exist.
func (ps *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)`)
	if err != nil {
		return fmt.Errorf("%w: create documents table: %v", ErrStorage, err)
	}
	return nil
}

func (ps *PostgresStore) Set(ctx context.Context, collection, id string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: marshal %s/%s: %v", ErrStorage, collection, id, err)
	}

	_, err = ps.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, id) DO UPDATE SET data = $3, updated_at = now()`,
		collection, id, payload)
	if err != nil {
		return fmt.Errorf("%w: set %s/%s: %v", ErrStorage, collection, id, err)
	}
	return nil
}

func (ps *PostgresStore) Get(ctx context.Context, collection, id string) (any, bool, error) {
	var payload []byte
	err := ps.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s/%s: %v", ErrStorage, collection, id, err)
	}

	doc, err := decodeDocument(collection, payload)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (ps *PostgresStore) GetAll(ctx context.Context, collection string) ([]any, error) {
	rows, err := ps.db.QueryContext(ctx,
		`SELECT data FROM documents WHERE collection = $1`, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrStorage, collection, err)
	}
	defer rows.Close()

	var items []any
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", ErrStorage, collection, err)
		}
		doc, err := decodeDocument(collection, payload)
		if err != nil {
			return nil, err
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrStorage, collection, err)
	}
	return items, nil
}

func (ps *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	_, err := ps.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("%w: delete %s/%s: %v", ErrStorage, collection, id, err)
	}
	return nil
}

// Update reads, applies updateFn, and writes back inside a transaction so
// the read-modify-write is atomic against concurrent updaters.
func (ps *PostgresStore) Update(ctx context.Context, collection, id string, updateFn func(current any) any) (bool, error) {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin update %s/%s: %v", ErrStorage, collection, id, err)
	}
	defer tx.Rollback()

	var payload []byte
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		collection, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: read %s/%s: %v", ErrStorage, collection, id, err)
	}

	current, err := decodeDocument(collection, payload)
	if err != nil {
		return false, err
	}

	updated, err := json.Marshal(updateFn(current))
	if err != nil {
		return false, fmt.Errorf("%w: marshal %s/%s: %v", ErrStorage, collection, id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET data = $3, updated_at = now() WHERE collection = $1 AND id = $2`,
		collection, id, updated); err != nil {
		return false, fmt.Errorf("%w: write %s/%s: %v", ErrStorage, collection, id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit %s/%s: %v", ErrStorage, collection, id, err)
	}
	return true, nil
}

// decodeDocument unmarshals a payload into the concrete type its collection
// holds. Unknown collections are product projections.
func decodeDocument(collection string, payload []byte) (any, error) {
	var doc any
	switch collection {
	case CollectionOrders:
		doc = &model.Order{}
	case CollectionAlerts:
		doc = &model.StockAlert{}
	case CollectionOperators:
		doc = &model.Operator{}
	default:
		doc = &model.Product{}
	}
	if err := json.Unmarshal(payload, doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s document: %v", ErrStorage, collection, err)
	}
	return doc, nil
}
