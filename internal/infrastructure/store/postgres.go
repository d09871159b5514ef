package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/skinmatch/backend/internal/domain"
)

// PostgresStore backs the product catalog with PostgreSQL. Ingredient
// membership tests use text[] overlap against the normalized set column.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore opens a connection pool and pings the database.
func NewPostgresStore(connStr string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	logger.Info("connected to PostgreSQL")
	return &PostgresStore{db: db, logger: logger}, nil
}

// CreateSchema creates the products and live_snapshots tables if they don't
// exist, with the indexes the candidate query depends on.
func (s *PostgresStore) CreateSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS products (
		id                   UUID PRIMARY KEY,
		retailer             TEXT        NOT NULL,
		retailer_sku         TEXT        NOT NULL,
		brand                TEXT        NOT NULL,
		name                 TEXT        NOT NULL,
		country              VARCHAR(2)  NOT NULL,
		currency             TEXT        NOT NULL,
		price                NUMERIC(10,2),
		price_per_ml         NUMERIC(10,4),
		pdp_url              TEXT        NOT NULL,
		image_url            TEXT,
		ingredients_raw      TEXT        NOT NULL,
		ingredients_norm     TEXT[]      NOT NULL,
		ingredients_norm_set TEXT[]      NOT NULL,
		last_seen            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_live_verified   TIMESTAMPTZ,
		UNIQUE (retailer, retailer_sku)
	);

	CREATE TABLE IF NOT EXISTS live_snapshots (
		id                   UUID PRIMARY KEY,
		product_id           UUID        NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		fetched_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		price                NUMERIC(10,2),
		currency             TEXT,
		in_stock             VARCHAR(50),
		deliverable_postcode VARCHAR(20),
		ingredients_raw      TEXT,
		status_code          VARCHAR(10),
		source               VARCHAR(50) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_products_country         ON products (country);
	CREATE INDEX IF NOT EXISTS idx_products_last_seen       ON products (last_seen);
	CREATE INDEX IF NOT EXISTS idx_products_ingredients_gin ON products USING GIN (ingredients_norm_set);
	CREATE INDEX IF NOT EXISTS idx_snapshots_product_id     ON live_snapshots (product_id);
	CREATE INDEX IF NOT EXISTS idx_snapshots_fetched_at     ON live_snapshots (fetched_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.logger.Info("product schema is ready")
	return nil
}

// FindCandidates pushes the whole filter predicate into SQL: one overlap
// clause per required alias group (AND), one negated overlap for the avoid
// union, the price cap passing NULL prices, ordered by last_seen descending.
func (s *PostgresStore) FindCandidates(ctx context.Context, query domain.CandidateQuery) ([]*domain.Product, error) {
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	clauses = append(clauses, fmt.Sprintf("country = %s", arg(query.Country)))

	for _, group := range query.Required {
		clauses = append(clauses, fmt.Sprintf("ingredients_norm_set && %s::text[]", arg(pq.Array(setToSlice(group.Aliases)))))
	}
	if len(query.Avoid) > 0 {
		clauses = append(clauses, fmt.Sprintf("NOT (ingredients_norm_set && %s::text[])", arg(pq.Array(setToSlice(query.Avoid)))))
	}
	if query.MaxPrice != nil {
		clauses = append(clauses, fmt.Sprintf("(price IS NULL OR price <= %s)", arg(*query.MaxPrice)))
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 200
	}

	stmt := fmt.Sprintf(`
		SELECT id, retailer, retailer_sku, brand, name, country, currency,
		       price, price_per_ml, pdp_url, image_url, ingredients_raw,
		       ingredients_norm, ingredients_norm_set, last_seen, last_live_verified
		FROM products
		WHERE %s
		ORDER BY last_seen DESC
		LIMIT %d`, strings.Join(clauses, " AND "), limit)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("candidate query failed: %w", err)
	}
	defer rows.Close()

	var candidates []*domain.Product
	for rows.Next() {
		var (
			p        domain.Product
			imageURL sql.NullString
			price    sql.NullFloat64
			ppm      sql.NullFloat64
			verified sql.NullTime
		)
		if err := rows.Scan(
			&p.ID, &p.Retailer, &p.RetailerSKU, &p.Brand, &p.Name, &p.Country,
			&p.Currency, &price, &ppm, &p.PDPURL, &imageURL, &p.IngredientsRaw,
			pq.Array(&p.IngredientsNorm), pq.Array(&p.IngredientsNormSet),
			&p.LastSeen, &verified,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		if price.Valid {
			p.Price = &price.Float64
		}
		if ppm.Valid {
			p.PricePerML = &ppm.Float64
		}
		if imageURL.Valid {
			p.ImageURL = imageURL.String
		}
		if verified.Valid {
			t := verified.Time
			p.LastLiveVerified = &t
		}
		candidates = append(candidates, &p)
	}
	return candidates, rows.Err()
}

// RecordVerification updates the product's price and verification timestamp
// and inserts the audit snapshot in a single transaction. A failure in
// either write rolls back both, so a failed verification never corrupts
// product state.
func (s *PostgresStore) RecordVerification(ctx context.Context, product *domain.Product, result *domain.LiveResult) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET price = COALESCE($1, price), last_live_verified = $2
		WHERE id = $3`,
		result.Price, result.FetchedAt, product.ID)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO live_snapshots
			(id, product_id, fetched_at, price, currency, in_stock,
			 deliverable_postcode, ingredients_raw, status_code, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.NewString(), product.ID, result.FetchedAt, result.Price,
		nullable(result.Currency), string(result.InStock),
		nullable(result.DeliverablePostcode), nullable(result.IngredientsRaw),
		nullable(result.StatusCode), result.Source)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for term := range set {
		out = append(out, term)
	}
	return out
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
