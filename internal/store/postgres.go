package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/spesasmart/catalog-cli/internal/db"
	"github.com/spesasmart/catalog-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot ingestion-path operations.
var preparedStatements = map[string]string{
	"insert_offer":       `INSERT INTO offers (id, product_id, flyer_id, chain_id, store_id, original_price, offer_price, discount_pct, discount_type, quantity, price_per_unit, unit_reference, valid_from, valid_to, raw_text, confidence, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
	"product_by_barcode": `SELECT id, name, brand, category, subcategory, unit, barcode, image_url, source, last_seen_at, created_at FROM products WHERE barcode = $1`,
	"flyer_by_key":       `SELECT id, chain_id, store_id, title, valid_from, valid_to, source_url, status, pages_count, created_at FROM flyers WHERE source_url = $1 AND chain_id = $2 AND valid_from = $3 AND valid_to = $4`,
	"chain_by_slug":      `SELECT id, name, slug, logo_url, website_url FROM chains WHERE slug = $1`,
	"update_product":     `UPDATE products SET name = $1, brand = $2, category = $3, subcategory = $4, unit = $5, barcode = $6, image_url = $7, source = $8, last_seen_at = $9 WHERE id = $10`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests and the seeding
// path which shares the pool with db.BulkUpsert.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., chain seeding).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS chains (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL,
	slug        TEXT NOT NULL UNIQUE,
	logo_url    TEXT,
	website_url TEXT
);

CREATE TABLE IF NOT EXISTS stores (
	id       TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	chain_id TEXT NOT NULL REFERENCES chains(id),
	name     TEXT,
	city     TEXT
);

CREATE TABLE IF NOT EXISTS products (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	brand        TEXT,
	category     TEXT,
	subcategory  TEXT,
	unit         TEXT,
	barcode      TEXT,
	image_url    TEXT,
	source       TEXT,
	last_seen_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_products_barcode ON products(barcode) WHERE barcode IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_products_brand ON products(lower(brand));
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);

CREATE TABLE IF NOT EXISTS flyers (
	id          TEXT PRIMARY KEY,
	chain_id    TEXT NOT NULL REFERENCES chains(id),
	store_id    TEXT REFERENCES stores(id),
	title       TEXT NOT NULL,
	valid_from  DATE NOT NULL,
	valid_to    DATE NOT NULL,
	source_url  TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	pages_count INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source_url, chain_id, valid_from, valid_to)
);

CREATE TABLE IF NOT EXISTS offers (
	id             TEXT PRIMARY KEY,
	product_id     TEXT NOT NULL REFERENCES products(id),
	flyer_id       TEXT NOT NULL REFERENCES flyers(id),
	chain_id       TEXT NOT NULL REFERENCES chains(id),
	store_id       TEXT,
	original_price DOUBLE PRECISION,
	offer_price    DOUBLE PRECISION NOT NULL,
	discount_pct   DOUBLE PRECISION,
	discount_type  TEXT,
	quantity       TEXT,
	price_per_unit DOUBLE PRECISION,
	unit_reference TEXT,
	valid_from     DATE,
	valid_to       DATE,
	raw_text       TEXT NOT NULL DEFAULT '',
	confidence     DOUBLE PRECISION,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_offers_product ON offers(product_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_offers_validity ON offers(valid_from, valid_to);
CREATE INDEX IF NOT EXISTS idx_offers_created_at ON offers(created_at);

CREATE TABLE IF NOT EXISTS user_watchlist (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL,
	product_id TEXT NOT NULL REFERENCES products(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, product_id)
);

CREATE INDEX IF NOT EXISTS idx_watchlist_product ON user_watchlist(product_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const productColumns = `id, name, brand, category, subcategory, unit, barcode, image_url, source, last_seen_at, created_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Subcategory,
		&p.Unit, &p.Barcode, &p.ImageURL, &p.Source, &p.LastSeenAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p *model.Product) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Name, p.Brand, p.Category, p.Subcategory, p.Unit, p.Barcode,
		p.ImageURL, p.Source, p.LastSeenAt, p.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert product %s", p.ID)
}

func (s *PostgresStore) ProductByID(ctx context.Context, id string) (*model.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get product %s", id)
	}
	return p, nil
}

func (s *PostgresStore) ProductByBarcode(ctx context.Context, barcode string) (*model.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE barcode = $1`, barcode))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get product by barcode %s", barcode)
	}
	return p, nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p *model.Product) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET name = $1, brand = $2, category = $3, subcategory = $4, unit = $5, barcode = $6, image_url = $7, source = $8, last_seen_at = $9 WHERE id = $10`,
		p.Name, p.Brand, p.Category, p.Subcategory, p.Unit, p.Barcode,
		p.ImageURL, p.Source, p.LastSeenAt, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update product %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("product not found: %s", p.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete product %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("product not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list products")
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (s *PostgresStore) FindCandidates(ctx context.Context, filter CandidateFilter) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Brand != "" {
		query += fmt.Sprintf(` AND lower(brand) = lower($%d)`, argIdx)
		args = append(args, filter.Brand)
		argIdx++
	}
	if len(filter.Tokens) > 0 {
		var clauses []string
		for _, tok := range filter.Tokens {
			clauses = append(clauses, fmt.Sprintf(`name ILIKE $%d`, argIdx))
			args = append(args, "%"+tok+"%")
			argIdx++
		}
		query += ` AND (` + strings.Join(clauses, " OR ") + `)`
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find candidates")
	}
	defer rows.Close()
	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]model.Product, error) {
	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan product")
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate products")
	}
	return products, nil
}

func (s *PostgresStore) ChainBySlug(ctx context.Context, slug string) (*model.Chain, error) {
	var c model.Chain
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, logo_url, website_url FROM chains WHERE slug = $1`, slug,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.LogoURL, &c.WebsiteURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get chain %s", slug)
	}
	return &c, nil
}

func (s *PostgresStore) UpsertChains(ctx context.Context, chains []model.Chain) (int64, error) {
	rows := make([][]any, 0, len(chains))
	for _, c := range chains {
		rows = append(rows, []any{c.ID, c.Name, c.Slug, c.LogoURL, c.WebsiteURL})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "chains",
		Columns:      []string{"id", "name", "slug", "logo_url", "website_url"},
		ConflictKeys: []string{"slug"},
		UpdateCols:   []string{"name", "logo_url", "website_url"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert chains")
	}
	return n, nil
}

const flyerColumns = `id, chain_id, store_id, title, valid_from, valid_to, source_url, status, pages_count, created_at`

func (s *PostgresStore) FlyerByKey(ctx context.Context, key model.FlyerKey) (*model.Flyer, error) {
	var f model.Flyer
	err := s.pool.QueryRow(ctx,
		`SELECT `+flyerColumns+` FROM flyers WHERE source_url = $1 AND chain_id = $2 AND valid_from = $3 AND valid_to = $4`,
		key.SourceURL, key.ChainID, key.ValidFrom, key.ValidTo,
	).Scan(&f.ID, &f.ChainID, &f.StoreID, &f.Title, &f.ValidFrom, &f.ValidTo,
		&f.SourceURL, &f.Status, &f.PagesCount, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get flyer by key")
	}
	return &f, nil
}

func (s *PostgresStore) CreateFlyer(ctx context.Context, f *model.Flyer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO flyers (`+flyerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.ID, f.ChainID, f.StoreID, f.Title, f.ValidFrom, f.ValidTo,
		f.SourceURL, string(f.Status), f.PagesCount, f.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert flyer %s", f.ID)
}

func (s *PostgresStore) SetFlyerStatus(ctx context.Context, id string, status model.FlyerStatus, pagesCount int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE flyers SET status = $1, pages_count = $2 WHERE id = $3`,
		string(status), pagesCount, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update flyer status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("flyer not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) CreateOffer(ctx context.Context, o *model.Offer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO offers (id, product_id, flyer_id, chain_id, store_id, original_price, offer_price, discount_pct, discount_type, quantity, price_per_unit, unit_reference, valid_from, valid_to, raw_text, confidence, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		o.ID, o.ProductID, o.FlyerID, o.ChainID, o.StoreID, o.OriginalPrice,
		o.OfferPrice, o.DiscountPct, o.DiscountType, o.Quantity, o.PricePerUnit,
		o.UnitReference, o.ValidFrom, o.ValidTo, o.RawText, o.Confidence, o.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert offer %s", o.ID)
}

const pricePointQuery = `SELECT o.id, o.chain_id, c.name, o.offer_price, o.original_price, o.discount_pct, o.valid_from, o.valid_to, o.created_at
FROM offers o JOIN chains c ON c.id = o.chain_id`

func (s *PostgresStore) PriceHistory(ctx context.Context, productID string) ([]model.PricePoint, error) {
	rows, err := s.pool.Query(ctx,
		pricePointQuery+` WHERE o.product_id = $1 ORDER BY o.created_at DESC`,
		productID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: price history %s", productID)
	}
	defer rows.Close()
	return collectPricePoints(rows)
}

func (s *PostgresStore) ActiveOffers(ctx context.Context, productID string, on time.Time) ([]model.PricePoint, error) {
	rows, err := s.pool.Query(ctx,
		pricePointQuery+` WHERE o.product_id = $1
AND (o.valid_from IS NULL OR o.valid_from <= $2)
AND (o.valid_to IS NULL OR o.valid_to >= $2)
ORDER BY o.offer_price ASC`,
		productID, on,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: active offers %s", productID)
	}
	defer rows.Close()
	return collectPricePoints(rows)
}

func collectPricePoints(rows pgx.Rows) ([]model.PricePoint, error) {
	var points []model.PricePoint
	for rows.Next() {
		var p model.PricePoint
		if err := rows.Scan(&p.OfferID, &p.ChainID, &p.ChainName, &p.Price,
			&p.OriginalPrice, &p.DiscountPct, &p.ValidFrom, &p.ValidTo, &p.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan price point")
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate price points")
	}
	return points, nil
}

func (s *PostgresStore) ActiveCategoryOffers(ctx context.Context, category string, on time.Time, limit int) ([]model.CategoryOffer, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT o.id, p.id, p.name, p.brand, c.name, o.offer_price, o.original_price, o.discount_pct, o.valid_to
FROM offers o
JOIN products p ON p.id = o.product_id
JOIN chains c ON c.id = o.chain_id
WHERE p.category = $1
AND (o.valid_from IS NULL OR o.valid_from <= $2)
AND (o.valid_to IS NULL OR o.valid_to >= $2)
ORDER BY o.offer_price ASC
LIMIT $3`,
		category, on, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: category offers %s", category)
	}
	defer rows.Close()

	var offers []model.CategoryOffer
	for rows.Next() {
		var o model.CategoryOffer
		if err := rows.Scan(&o.OfferID, &o.ProductID, &o.ProductName, &o.Brand,
			&o.ChainName, &o.Price, &o.OriginalPrice, &o.DiscountPct, &o.ValidTo); err != nil {
			return nil, eris.Wrap(err, "postgres: scan category offer")
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate category offers")
	}
	return offers, nil
}

func (s *PostgresStore) NewOffersSince(ctx context.Context, since time.Time) ([]OfferFeedItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, product_id, offer_price, valid_from, valid_to FROM offers WHERE created_at > $1 ORDER BY created_at`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: new offers")
	}
	defer rows.Close()

	var items []OfferFeedItem
	for rows.Next() {
		var it OfferFeedItem
		if err := rows.Scan(&it.OfferID, &it.ProductID, &it.OfferPrice, &it.ValidFrom, &it.ValidTo); err != nil {
			return nil, eris.Wrap(err, "postgres: scan offer feed item")
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate offer feed")
	}
	return items, nil
}

func (s *PostgresStore) RepointOffers(ctx context.Context, fromProductID, toProductID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE offers SET product_id = $1 WHERE product_id = $2`,
		toProductID, fromProductID,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: repoint offers")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) WatchlistUserIDs(ctx context.Context, productID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM user_watchlist WHERE product_id = $1`, productID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: watchlist users")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan watchlist user")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate watchlist users")
	}
	return ids, nil
}

func (s *PostgresStore) DeleteWatchlistEntries(ctx context.Context, productID string, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM user_watchlist WHERE product_id = $1 AND user_id = ANY($2)`,
		productID, userIDs,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete watchlist entries")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) RepointWatchlist(ctx context.Context, fromProductID, toProductID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE user_watchlist SET product_id = $1 WHERE product_id = $2`,
		toProductID, fromProductID,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: repoint watchlist")
	}
	return tag.RowsAffected(), nil
}

// InTx runs fn against a transaction-scoped store. pgx.Tx satisfies db.Pool,
// so the transactional store reuses every query method above.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx)

	if err := fn(&PostgresStore{pool: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit tx")
	}
	return nil
}
