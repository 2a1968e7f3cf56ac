package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/spesasmart/catalog-cli/internal/model"
)

// sqliteQuerier is satisfied by both *sql.DB and *sql.Tx so the same query
// methods serve plain and transactional stores.
type sqliteQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using modernc.org/sqlite. It serves local
// development and single-operator deployments; Postgres is the production
// driver.
type SQLiteStore struct {
	db *sql.DB
	q  sqliteQuerier
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, q: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS chains (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	slug        TEXT NOT NULL UNIQUE,
	logo_url    TEXT,
	website_url TEXT
);

CREATE TABLE IF NOT EXISTS stores (
	id       TEXT PRIMARY KEY,
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
	last_seen_at DATETIME,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_products_barcode ON products(barcode) WHERE barcode IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_products_brand ON products(lower(brand));
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);

CREATE TABLE IF NOT EXISTS flyers (
	id          TEXT PRIMARY KEY,
	chain_id    TEXT NOT NULL REFERENCES chains(id),
	store_id    TEXT REFERENCES stores(id),
	title       TEXT NOT NULL,
	valid_from  DATETIME NOT NULL,
	valid_to    DATETIME NOT NULL,
	source_url  TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	pages_count INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (source_url, chain_id, valid_from, valid_to)
);

CREATE TABLE IF NOT EXISTS offers (
	id             TEXT PRIMARY KEY,
	product_id     TEXT NOT NULL REFERENCES products(id),
	flyer_id       TEXT NOT NULL REFERENCES flyers(id),
	chain_id       TEXT NOT NULL REFERENCES chains(id),
	store_id       TEXT,
	original_price REAL,
	offer_price    REAL NOT NULL,
	discount_pct   REAL,
	discount_type  TEXT,
	quantity       TEXT,
	price_per_unit REAL,
	unit_reference TEXT,
	valid_from     DATETIME,
	valid_to       DATETIME,
	raw_text       TEXT NOT NULL DEFAULT '',
	confidence     REAL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_offers_product ON offers(product_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_offers_validity ON offers(valid_from, valid_to);
CREATE INDEX IF NOT EXISTS idx_offers_created_at ON offers(created_at);

CREATE TABLE IF NOT EXISTS user_watchlist (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	product_id TEXT NOT NULL REFERENCES products(id),
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (user_id, product_id)
);

CREATE INDEX IF NOT EXISTS idx_watchlist_product ON user_watchlist(product_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.q.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) CreateProduct(ctx context.Context, p *model.Product) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO products (id, name, brand, category, subcategory, unit, barcode, image_url, source, last_seen_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Brand, p.Category, p.Subcategory, p.Unit, p.Barcode,
		p.ImageURL, p.Source, p.LastSeenAt, p.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert product %s", p.ID)
}

func (s *SQLiteStore) scanProductRow(row *sql.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Subcategory,
		&p.Unit, &p.Barcode, &p.ImageURL, &p.Source, &p.LastSeenAt, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) ProductByID(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.scanProductRow(s.q.QueryRowContext(ctx,
		`SELECT id, name, brand, category, subcategory, unit, barcode, image_url, source, last_seen_at, created_at FROM products WHERE id = ?`, id))
	return p, eris.Wrapf(err, "sqlite: get product %s", id)
}

func (s *SQLiteStore) ProductByBarcode(ctx context.Context, barcode string) (*model.Product, error) {
	p, err := s.scanProductRow(s.q.QueryRowContext(ctx,
		`SELECT id, name, brand, category, subcategory, unit, barcode, image_url, source, last_seen_at, created_at FROM products WHERE barcode = ?`, barcode))
	return p, eris.Wrapf(err, "sqlite: get product by barcode %s", barcode)
}

func (s *SQLiteStore) UpdateProduct(ctx context.Context, p *model.Product) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE products SET name = ?, brand = ?, category = ?, subcategory = ?, unit = ?, barcode = ?, image_url = ?, source = ?, last_seen_at = ? WHERE id = ?`,
		p.Name, p.Brand, p.Category, p.Subcategory, p.Unit, p.Barcode,
		p.ImageURL, p.Source, p.LastSeenAt, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update product %s", p.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("product not found: %s", p.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete product %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("product not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, brand, category, subcategory, unit, barcode, image_url, source, last_seen_at, created_at FROM products ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list products")
	}
	defer rows.Close()
	return collectSQLiteProducts(rows)
}

func (s *SQLiteStore) FindCandidates(ctx context.Context, filter CandidateFilter) ([]model.Product, error) {
	query := `SELECT id, name, brand, category, subcategory, unit, barcode, image_url, source, last_seen_at, created_at FROM products WHERE 1=1`
	args := []any{}

	if filter.Brand != "" {
		query += ` AND lower(brand) = lower(?)`
		args = append(args, filter.Brand)
	}
	if len(filter.Tokens) > 0 {
		var clauses []string
		for _, tok := range filter.Tokens {
			clauses = append(clauses, `lower(name) LIKE '%' || lower(?) || '%'`)
			args = append(args, tok)
		}
		query += ` AND (` + strings.Join(clauses, " OR ") + `)`
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find candidates")
	}
	defer rows.Close()
	return collectSQLiteProducts(rows)
}

func collectSQLiteProducts(rows *sql.Rows) ([]model.Product, error) {
	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Subcategory,
			&p.Unit, &p.Barcode, &p.ImageURL, &p.Source, &p.LastSeenAt, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product")
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate products")
	}
	return products, nil
}

func (s *SQLiteStore) ChainBySlug(ctx context.Context, slug string) (*model.Chain, error) {
	var c model.Chain
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, slug, logo_url, website_url FROM chains WHERE slug = ?`, slug,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.LogoURL, &c.WebsiteURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get chain %s", slug)
	}
	return &c, nil
}

func (s *SQLiteStore) UpsertChains(ctx context.Context, chains []model.Chain) (int64, error) {
	var n int64
	for _, c := range chains {
		res, err := s.q.ExecContext(ctx,
			`INSERT INTO chains (id, name, slug, logo_url, website_url) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (slug) DO UPDATE SET name = excluded.name, logo_url = excluded.logo_url, website_url = excluded.website_url`,
			c.ID, c.Name, c.Slug, c.LogoURL, c.WebsiteURL,
		)
		if err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert chain %s", c.Slug)
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			n += affected
		}
	}
	return n, nil
}

func (s *SQLiteStore) FlyerByKey(ctx context.Context, key model.FlyerKey) (*model.Flyer, error) {
	var f model.Flyer
	err := s.q.QueryRowContext(ctx,
		`SELECT id, chain_id, store_id, title, valid_from, valid_to, source_url, status, pages_count, created_at FROM flyers WHERE source_url = ? AND chain_id = ? AND valid_from = ? AND valid_to = ?`,
		key.SourceURL, key.ChainID, key.ValidFrom, key.ValidTo,
	).Scan(&f.ID, &f.ChainID, &f.StoreID, &f.Title, &f.ValidFrom, &f.ValidTo,
		&f.SourceURL, &f.Status, &f.PagesCount, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get flyer by key")
	}
	return &f, nil
}

func (s *SQLiteStore) CreateFlyer(ctx context.Context, f *model.Flyer) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO flyers (id, chain_id, store_id, title, valid_from, valid_to, source_url, status, pages_count, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ChainID, f.StoreID, f.Title, f.ValidFrom, f.ValidTo,
		f.SourceURL, string(f.Status), f.PagesCount, f.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert flyer %s", f.ID)
}

func (s *SQLiteStore) SetFlyerStatus(ctx context.Context, id string, status model.FlyerStatus, pagesCount int) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE flyers SET status = ?, pages_count = ? WHERE id = ?`,
		string(status), pagesCount, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update flyer status %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("flyer not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) CreateOffer(ctx context.Context, o *model.Offer) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO offers (id, product_id, flyer_id, chain_id, store_id, original_price, offer_price, discount_pct, discount_type, quantity, price_per_unit, unit_reference, valid_from, valid_to, raw_text, confidence, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ProductID, o.FlyerID, o.ChainID, o.StoreID, o.OriginalPrice,
		o.OfferPrice, o.DiscountPct, o.DiscountType, o.Quantity, o.PricePerUnit,
		o.UnitReference, o.ValidFrom, o.ValidTo, o.RawText, o.Confidence, o.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert offer %s", o.ID)
}

const sqlitePricePointQuery = `SELECT o.id, o.chain_id, c.name, o.offer_price, o.original_price, o.discount_pct, o.valid_from, o.valid_to, o.created_at
FROM offers o JOIN chains c ON c.id = o.chain_id`

func (s *SQLiteStore) PriceHistory(ctx context.Context, productID string) ([]model.PricePoint, error) {
	rows, err := s.q.QueryContext(ctx,
		sqlitePricePointQuery+` WHERE o.product_id = ? ORDER BY o.created_at DESC`,
		productID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: price history %s", productID)
	}
	defer rows.Close()
	return collectSQLitePricePoints(rows)
}

func (s *SQLiteStore) ActiveOffers(ctx context.Context, productID string, on time.Time) ([]model.PricePoint, error) {
	rows, err := s.q.QueryContext(ctx,
		sqlitePricePointQuery+` WHERE o.product_id = ?
AND (o.valid_from IS NULL OR o.valid_from <= ?)
AND (o.valid_to IS NULL OR o.valid_to >= ?)
ORDER BY o.offer_price ASC`,
		productID, on, on,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: active offers %s", productID)
	}
	defer rows.Close()
	return collectSQLitePricePoints(rows)
}

func collectSQLitePricePoints(rows *sql.Rows) ([]model.PricePoint, error) {
	var points []model.PricePoint
	for rows.Next() {
		var p model.PricePoint
		if err := rows.Scan(&p.OfferID, &p.ChainID, &p.ChainName, &p.Price,
			&p.OriginalPrice, &p.DiscountPct, &p.ValidFrom, &p.ValidTo, &p.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan price point")
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate price points")
	}
	return points, nil
}

func (s *SQLiteStore) ActiveCategoryOffers(ctx context.Context, category string, on time.Time, limit int) ([]model.CategoryOffer, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT o.id, p.id, p.name, p.brand, c.name, o.offer_price, o.original_price, o.discount_pct, o.valid_to
FROM offers o
JOIN products p ON p.id = o.product_id
JOIN chains c ON c.id = o.chain_id
WHERE p.category = ?
AND (o.valid_from IS NULL OR o.valid_from <= ?)
AND (o.valid_to IS NULL OR o.valid_to >= ?)
ORDER BY o.offer_price ASC
LIMIT ?`,
		category, on, on, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: category offers %s", category)
	}
	defer rows.Close()

	var offers []model.CategoryOffer
	for rows.Next() {
		var o model.CategoryOffer
		if err := rows.Scan(&o.OfferID, &o.ProductID, &o.ProductName, &o.Brand,
			&o.ChainName, &o.Price, &o.OriginalPrice, &o.DiscountPct, &o.ValidTo); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan category offer")
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate category offers")
	}
	return offers, nil
}

func (s *SQLiteStore) NewOffersSince(ctx context.Context, since time.Time) ([]OfferFeedItem, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, product_id, offer_price, valid_from, valid_to FROM offers WHERE created_at > ? ORDER BY created_at`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: new offers")
	}
	defer rows.Close()

	var items []OfferFeedItem
	for rows.Next() {
		var it OfferFeedItem
		if err := rows.Scan(&it.OfferID, &it.ProductID, &it.OfferPrice, &it.ValidFrom, &it.ValidTo); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan offer feed item")
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate offer feed")
	}
	return items, nil
}

func (s *SQLiteStore) RepointOffers(ctx context.Context, fromProductID, toProductID string) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE offers SET product_id = ? WHERE product_id = ?`,
		toProductID, fromProductID,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: repoint offers")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteStore) WatchlistUserIDs(ctx context.Context, productID string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT user_id FROM user_watchlist WHERE product_id = ?`, productID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: watchlist users")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan watchlist user")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate watchlist users")
	}
	return ids, nil
}

func (s *SQLiteStore) DeleteWatchlistEntries(ctx context.Context, productID string, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(userIDs)), ", ")
	args := make([]any, 0, len(userIDs)+1)
	args = append(args, productID)
	for _, id := range userIDs {
		args = append(args, id)
	}
	res, err := s.q.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM user_watchlist WHERE product_id = ? AND user_id IN (%s)`, placeholders),
		args...,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete watchlist entries")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteStore) RepointWatchlist(ctx context.Context, fromProductID, toProductID string) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE user_watchlist SET product_id = ? WHERE product_id = ?`,
		toProductID, fromProductID,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: repoint watchlist")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// InTx runs fn against a transaction-scoped store.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	if err := fn(&SQLiteStore{db: s.db, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit tx")
	}
	return nil
}
