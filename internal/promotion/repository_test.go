package promotion_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/modest-storefront/internal/catalog"
	"github.com/vasiliy-maslov/modest-storefront/internal/config"
	"github.com/vasiliy-maslov/modest-storefront/internal/db"
	"github.com/vasiliy-maslov/modest-storefront/internal/promotion"
)

var testDB *db.Postgres

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestMain(m *testing.M) {
	host := os.Getenv("DB_HOST_TEST")
	if host == "" {
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	var err error
	testDB, err = db.New(ctx, config.PostgresConfig{
		Host:           host,
		Port:           envOr("DB_PORT_TEST", "5432"),
		User:           envOr("DB_USER_TEST", "postgres"),
		Password:       envOr("DB_PASSWORD_TEST", "postgres"),
		DBName:         envOr("DB_NAME_TEST", "storefront_test"),
		SSLMode:        envOr("DB_SSLMODE_TEST", "disable"),
		MaxConns:       5,
		MigrationsPath: "../../migrations",
	})
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to test database")
	}

	exitCode := m.Run()
	testDB.Close()
	os.Exit(exitCode)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("DB_HOST_TEST not set")
	}
}

func truncatePromotions(tb testing.TB) {
	tb.Helper()
	_, err := testDB.Pool.Exec(context.Background(), "TRUNCATE TABLE promotions")
	require.NoError(tb, err, "failed to truncate promotions table")
}

func newPromotion(code *string) *promotion.Promotion {
	limit := 2
	return &promotion.Promotion{
		Name:          "Eid",
		Code:          code,
		DiscountType:  promotion.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		StartsAt:      time.Now().Add(-time.Hour).UTC(),
		EndsAt:        time.Now().Add(time.Hour).UTC(),
		IsActive:      true,
		Categories:    []catalog.Category{catalog.CategoryHijabWrapping},
		ProductIDs:    []uuid.UUID{uuid.Must(uuid.NewV4())},
		UsageLimit:    &limit,
	}
}

func TestPromotionRepository_CreateAndGetByCode(t *testing.T) {
	requireDB(t)
	t.Cleanup(func() { truncatePromotions(t) })
	repo := promotion.NewRepository(testDB.Pool)
	ctx := context.Background()

	code := "Eid10"
	p := newPromotion(&code)
	require.NoError(t, repo.Create(ctx, p))
	require.NotEqual(t, uuid.Nil, p.ID)

	got, err := repo.GetByCode(ctx, "EID10")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, got.DiscountValue.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, p.Categories, got.Categories)
	assert.Equal(t, p.ProductIDs, got.ProductIDs)
	require.NotNil(t, got.UsageLimit)
	assert.Equal(t, 2, *got.UsageLimit)

	dup := "eid10"
	assert.ErrorIs(t, repo.Create(ctx, newPromotion(&dup)), promotion.ErrCodeExists)

	_, err = repo.GetByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, promotion.ErrNotFound)
}

func TestPromotionRepository_ListActiveAndIncrementUsage(t *testing.T) {
	requireDB(t)
	t.Cleanup(func() { truncatePromotions(t) })
	repo := promotion.NewRepository(testDB.Pool)
	ctx := context.Background()

	active := newPromotion(nil)
	require.NoError(t, repo.Create(ctx, active))

	expired := newPromotion(nil)
	expired.StartsAt = time.Now().Add(-48 * time.Hour).UTC()
	expired.EndsAt = time.Now().Add(-24 * time.Hour).UTC()
	require.NoError(t, repo.Create(ctx, expired))

	list, err := repo.ListActive(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)

	require.NoError(t, repo.IncrementUsage(ctx, active.ID))
	require.NoError(t, repo.IncrementUsage(ctx, active.ID))
	got, err := repo.GetByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsageCount)
	assert.True(t, got.UsageExhausted())

	assert.ErrorIs(t, repo.IncrementUsage(ctx, uuid.Must(uuid.NewV4())), promotion.ErrNotFound)
}
