package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spesasmart/catalog-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func strPtr(s string) *string { return &s }

var productCols = []string{"id", "name", "brand", "category", "subcategory", "unit", "barcode", "image_url", "source", "last_seen_at", "created_at"}

func TestPostgresStore_ProductByID_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM products WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	p, err := s.ProductByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ProductByBarcode(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM products WHERE barcode = \$1`).
		WithArgs("8001234567890").
		WillReturnRows(pgxmock.NewRows(productCols).AddRow(
			"p1", "Latte Intero 1L", strPtr("Granarolo"), strPtr("Latticini"),
			(*string)(nil), (*string)(nil), strPtr("8001234567890"),
			(*string)(nil), strPtr("chain-a"), (*time.Time)(nil), now,
		))

	p, err := s.ProductByBarcode(context.Background(), "8001234567890")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "Granarolo", *p.Brand)
	assert.Nil(t, p.Subcategory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProduct(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	p := &model.Product{
		ID:        "p1",
		Name:      "Latte Intero 1L",
		Brand:     strPtr("Granarolo"),
		CreatedAt: now,
	}

	mock.ExpectExec(`INSERT INTO products`).
		WithArgs(p.ID, p.Name, p.Brand, p.Category, p.Subcategory, p.Unit,
			p.Barcode, p.ImageURL, p.Source, p.LastSeenAt, p.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.CreateProduct(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProduct_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE products SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateProduct(context.Background(), &model.Product{ID: "missing", Name: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "product not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindCandidates_BrandAndTokens(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM products WHERE true AND lower\(brand\) = lower\(\$1\) AND \(name ILIKE \$2 OR name ILIKE \$3\)`).
		WithArgs("Granarolo", "%latte%", "%intero%").
		WillReturnRows(pgxmock.NewRows(productCols).AddRow(
			"p1", "Latte Intero 1L", strPtr("Granarolo"), (*string)(nil),
			(*string)(nil), (*string)(nil), (*string)(nil),
			(*string)(nil), (*string)(nil), (*time.Time)(nil), now,
		))

	got, err := s.FindCandidates(context.Background(), CandidateFilter{
		Brand:  "Granarolo",
		Tokens: []string{"latte", "intero"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ChainBySlug_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM chains WHERE slug = \$1`).
		WithArgs("sconosciuto").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.ChainBySlug(context.Background(), "sconosciuto")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FlyerByKey(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	from := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	key := model.FlyerKey{
		SourceURL: "https://example.com/f.pdf",
		ChainID:   "c1",
		ValidFrom: from,
		ValidTo:   to,
	}

	mock.ExpectQuery(`SELECT .+ FROM flyers WHERE source_url = \$1 AND chain_id = \$2 AND valid_from = \$3 AND valid_to = \$4`).
		WithArgs(key.SourceURL, key.ChainID, key.ValidFrom, key.ValidTo).
		WillReturnRows(pgxmock.NewRows([]string{"id", "chain_id", "store_id", "title", "valid_from", "valid_to", "source_url", "status", "pages_count", "created_at"}).
			AddRow("f1", "c1", (*string)(nil), "Offerte", from, to, key.SourceURL, "processed", 12, time.Now().UTC()))

	f, err := s.FlyerByKey(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "f1", f.ID)
	assert.Equal(t, model.FlyerStatusProcessed, f.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetFlyerStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE flyers SET status = \$1, pages_count = \$2 WHERE id = \$3`).
		WithArgs("processed", 10, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetFlyerStatus(context.Background(), "missing", model.FlyerStatusProcessed, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flyer not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RepointOffers(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE offers SET product_id = \$1 WHERE product_id = \$2`).
		WithArgs("keeper", "dup").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := s.RepointOffers(context.Background(), "dup", "keeper")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PriceHistory(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM offers o JOIN chains c ON c.id = o.chain_id WHERE o.product_id = \$1 ORDER BY o.created_at DESC`).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "chain_id", "name", "offer_price", "original_price", "discount_pct", "valid_from", "valid_to", "created_at"}).
			AddRow("o2", "c1", "Conad", 1.29, (*float64)(nil), (*float64)(nil), (*time.Time)(nil), (*time.Time)(nil), now).
			AddRow("o1", "c1", "Conad", 1.19, (*float64)(nil), (*float64)(nil), (*time.Time)(nil), (*time.Time)(nil), now.Add(-time.Hour)))

	history, err := s.PriceHistory(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "o2", history[0].OfferID)
	assert.Equal(t, "Conad", history[0].ChainName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteWatchlistEntries_Empty(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	// No users means no statement at all.
	n, err := s.DeleteWatchlistEntries(context.Background(), "p1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPostgresStore_InTx_CommitAndRollback(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM products WHERE id = \$1`).
		WithArgs("p1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(txStore Store) error {
		return txStore.DeleteProduct(context.Background(), "p1")
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = s.InTx(context.Background(), func(Store) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
