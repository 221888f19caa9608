package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/guarzo/markethub/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	name           TEXT NOT NULL,
	url            TEXT NOT NULL,
	platform       TEXT NOT NULL,
	currency       TEXT NOT NULL,
	current_price  DOUBLE PRECISION NOT NULL DEFAULT 0,
	target_price   DOUBLE PRECISION,
	specifications TEXT NOT NULL DEFAULT '',
	price_history  JSONB NOT NULL DEFAULT '[]',
	last_checked   TIMESTAMPTZ NOT NULL,
	is_active      BOOLEAN NOT NULL DEFAULT TRUE,
	views          BIGINT NOT NULL DEFAULT 0,
	price_checks   BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_listings_user_created ON listings (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_listings_platform ON listings (platform);
`

// Postgres is the durable Store. Price history rides the listing row as a
// JSONB array, mirroring the embedded-history record shape.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres connects to the database and ensures the schema exists.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

type listingRow struct {
	model.Listing
	HistoryJSON []byte `db:"price_history"`
}

func (r *listingRow) toListing() (model.Listing, error) {
	l := r.Listing
	l.PriceHistory = nil
	if len(r.HistoryJSON) > 0 {
		if err := json.Unmarshal(r.HistoryJSON, &l.PriceHistory); err != nil {
			return l, fmt.Errorf("decoding price history: %w", err)
		}
	}
	return l, nil
}

func historyJSON(l *model.Listing) ([]byte, error) {
	history := l.PriceHistory
	if history == nil {
		history = []model.PricePoint{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("encoding price history: %w", err)
	}
	return data, nil
}

func (p *Postgres) Create(ctx context.Context, l *model.Listing) error {
	history, err := historyJSON(l)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO listings
			(id, user_id, name, url, platform, currency, current_price, target_price,
			 specifications, price_history, last_checked, is_active, views, price_checks, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		l.ID, l.UserID, l.Name, l.URL, l.Platform, l.Currency, l.CurrentPrice, l.TargetPrice,
		l.Specifications, string(history), l.LastChecked, l.IsActive, l.Views, l.PriceChecks, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting listing: %w", err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, l *model.Listing) error {
	history, err := historyJSON(l)
	if err != nil {
		return err
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE listings SET
			name = $3, url = $4, platform = $5, currency = $6, current_price = $7,
			target_price = $8, specifications = $9, price_history = $10,
			last_checked = $11, is_active = $12, views = $13, price_checks = $14
		WHERE id = $1 AND user_id = $2`,
		l.ID, l.UserID, l.Name, l.URL, l.Platform, l.Currency, l.CurrentPrice,
		l.TargetPrice, l.Specifications, string(history), l.LastChecked, l.IsActive,
		l.Views, l.PriceChecks)
	if err != nil {
		return fmt.Errorf("updating listing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, userID, id string) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM listings WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting listing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, userID, id string) (*model.Listing, error) {
	var row listingRow
	err := p.db.GetContext(ctx, &row,
		`SELECT * FROM listings WHERE id = $1 AND user_id = $2`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting listing: %w", err)
	}

	l, err := row.toListing()
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (p *Postgres) List(ctx context.Context, userID string) ([]model.Listing, error) {
	var rows []listingRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT * FROM listings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 100`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing listings: %w", err)
	}

	out := make([]model.Listing, 0, len(rows))
	for i := range rows {
		l, err := rows[i].toListing()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (p *Postgres) All(ctx context.Context) ([]model.Listing, error) {
	var rows []listingRow
	err := p.db.SelectContext(ctx, &rows,
		`SELECT * FROM listings ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing all listings: %w", err)
	}

	out := make([]model.Listing, 0, len(rows))
	for i := range rows {
		l, err := rows[i].toListing()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
