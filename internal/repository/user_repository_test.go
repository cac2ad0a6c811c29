package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eaglebank/authorization-service/internal/db/dbtest"
	"github.com/eaglebank/authorization-service/shared/models"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHassanein() *models.UserRecord {
	return &models.UserRecord{
		ID:   "usr-hassanein0",
		Name: "Hassanein",
		Accounts: []models.Account{
			{AccountNumber: "NL44RABO0123456789", AccountHolderName: "Hassanein", Balance: decimal.RequireFromString("100.00"), Type: models.SubtypePayment},
			{AccountNumber: "NL44RABO0123456788", AccountHolderName: "Hassanein", Balance: decimal.RequireFromString("1000.00"), Type: models.SubtypeSavings},
		},
	}
}

func TestUserWriteRepository_InsertAndFind(t *testing.T) {
	stores := dbtest.OpenSQLite(t)
	repo := NewUserWriteRepository(stores.Write)
	ctx := context.Background()

	saved, err := repo.Save(ctx, newHassanein())
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := repo.FindByName(ctx, "Hassanein")
	require.NoError(t, err)
	assert.Equal(t, "usr-hassanein0", got.ID)
	assert.Equal(t, int64(1), got.Version)
	require.Len(t, got.Accounts, 2)
	assert.Equal(t, "NL44RABO0123456789", got.Accounts[0].AccountNumber)
	assert.True(t, got.Accounts[0].Balance.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, models.SubtypeSavings, got.Accounts[1].Type)
	assert.Empty(t, got.Granted(models.AccessRead))
}

func TestUserWriteRepository_FindByName_NotFound(t *testing.T) {
	stores := dbtest.OpenSQLite(t)
	repo := NewUserWriteRepository(stores.Write)

	_, err := repo.FindByName(context.Background(), "Erwin")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserWriteRepository_DuplicateName(t *testing.T) {
	stores := dbtest.OpenSQLite(t)
	repo := NewUserWriteRepository(stores.Write)
	ctx := context.Background()

	_, err := repo.Save(ctx, newHassanein())
	require.NoError(t, err)

	dup := newHassanein()
	dup.ID = "usr-otherid000"
	_, err = repo.Save(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestUserWriteRepository_UpdatePersistsGrants(t *testing.T) {
	stores := dbtest.OpenSQLite(t)
	repo := NewUserWriteRepository(stores.Write)
	ctx := context.Background()

	saved, err := repo.Save(ctx, newHassanein())
	require.NoError(t, err)

	saved.Grant(models.AccessWrite, models.AccountSnapshot{
		AccountNumber: "NL44RABO0123451234", AccountHolderName: "Alvin",
		Balance: decimal.NewFromInt(200), AccountSubtype: models.SubtypePayment,
	})
	updated, err := repo.Save(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	got, err := repo.FindByName(ctx, "Hassanein")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	require.Len(t, got.Granted(models.AccessWrite), 1)
	assert.Equal(t, "Alvin", got.Granted(models.AccessWrite)[0].AccountHolderName)
	assert.Empty(t, got.Granted(models.AccessRead))
}

func TestUserWriteRepository_StaleVersionConflicts(t *testing.T) {
	stores := dbtest.OpenSQLite(t)
	repo := NewUserWriteRepository(stores.Write)
	ctx := context.Background()

	saved, err := repo.Save(ctx, newHassanein())
	require.NoError(t, err)

	first := saved.Clone()
	second := saved.Clone()
	first.Grant(models.AccessRead, models.AccountSnapshot{AccountNumber: "A"})
	second.Grant(models.AccessRead, models.AccountSnapshot{AccountNumber: "B"})

	_, err = repo.Save(ctx, first)
	require.NoError(t, err)
	_, err = repo.Save(ctx, second)
	assert.ErrorIs(t, err, ErrVersionConflict)

	got, err := repo.FindByName(ctx, "Hassanein")
	require.NoError(t, err)
	require.Len(t, got.Granted(models.AccessRead), 1)
	assert.Equal(t, "A", got.Granted(models.AccessRead)[0].AccountNumber)
}

func TestUserWriteRepository_Count(t *testing.T) {
	stores := dbtest.OpenSQLite(t)
	repo := NewUserWriteRepository(stores.Write)
	ctx := context.Background()

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.Save(ctx, newHassanein())
	require.NoError(t, err)
	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUserReadRepository_FallsBackToSQLWhenRedisIsDown(t *testing.T) {
	stores := dbtest.OpenSQLite(t)
	ctx := context.Background()
	_, err := NewUserWriteRepository(stores.Write).Save(ctx, newHassanein())
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	readRepo := NewUserReadRepository(stores.Read, client)
	got, err := readRepo.FindByName(ctx, "Hassanein")
	require.NoError(t, err)
	assert.Equal(t, "Hassanein", got.Name)

	_, err = readRepo.FindByName(ctx, "Erwin")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserReadRepository_WithoutRedis(t *testing.T) {
	stores := dbtest.OpenSQLite(t)
	ctx := context.Background()
	_, err := NewUserWriteRepository(stores.Write).Save(ctx, newHassanein())
	require.NoError(t, err)

	readRepo := NewUserReadRepository(stores.Read, nil)
	got, err := readRepo.FindByName(ctx, "Hassanein")
	require.NoError(t, err)
	assert.Len(t, got.Accounts, 2)

	readRepo.InvalidateUserView(ctx, "Hassanein")
	readRepo.CacheUserView(ctx, got)
}

func newCachedReadRepo(t *testing.T) (*UserWriteRepository, *UserReadRepository, *miniredis.Miniredis, func(string) error) {
	t.Helper()
	stores := dbtest.OpenSQLite(t)
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	deleteRow := func(name string) error {
		_, err := stores.Write.Exec(`DELETE FROM users WHERE name = $1`, name)
		return err
	}
	return NewUserWriteRepository(stores.Write), NewUserReadRepository(stores.Read, client), mr, deleteRow
}

// saveVersions stores Hassanein and then appends one grant per extra version,
// returning every committed record in order.
func saveVersions(t *testing.T, repo *UserWriteRepository, n int) []*models.UserRecord {
	t.Helper()
	ctx := context.Background()
	saved, err := repo.Save(ctx, newHassanein())
	require.NoError(t, err)
	versions := []*models.UserRecord{saved}
	for i := 1; i < n; i++ {
		next := saved.Clone()
		next.Grant(models.AccessRead, models.AccountSnapshot{AccountNumber: "NL44RABO0123451234", AccountSubtype: models.SubtypePayment})
		saved, err = repo.Save(ctx, next)
		require.NoError(t, err)
		versions = append(versions, saved)
	}
	return versions
}

func TestUserReadRepository_ServesCachedView(t *testing.T) {
	writeRepo, readRepo, mr, deleteRow := newCachedReadRepo(t)
	ctx := context.Background()
	saveVersions(t, writeRepo, 1)

	_, err := readRepo.FindByName(ctx, "Hassanein")
	require.NoError(t, err)
	require.True(t, mr.Exists("user:view:Hassanein"))
	assert.Equal(t, userViewTTL, mr.TTL("user:view:Hassanein"))

	// The SQL row is gone; only the cache can answer now.
	require.NoError(t, deleteRow("Hassanein"))
	got, err := readRepo.FindByName(ctx, "Hassanein")
	require.NoError(t, err)
	assert.Equal(t, "Hassanein", got.Name)
	assert.Len(t, got.Accounts, 2)
}

func TestUserReadRepository_OutOfOrderRefreshKeepsNewest(t *testing.T) {
	writeRepo, readRepo, _, _ := newCachedReadRepo(t)
	ctx := context.Background()
	versions := saveVersions(t, writeRepo, 3)

	readRepo.CacheUserView(ctx, versions[2])
	readRepo.CacheUserView(ctx, versions[1])

	got, err := readRepo.FindByName(ctx, "Hassanein")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)
	assert.Len(t, got.Granted(models.AccessRead), 2)
}

func TestUserReadRepository_ColdReadDoesNotRollBackView(t *testing.T) {
	writeRepo, readRepo, mr, _ := newCachedReadRepo(t)
	ctx := context.Background()
	versions := saveVersions(t, writeRepo, 2)

	// A listing loaded v1 from SQL, then a grant committed and cached v2
	// before the listing got to warm the cache.
	readRepo.CacheUserView(ctx, versions[1])
	readRepo.CacheUserView(ctx, versions[0])

	assert.Equal(t, "2", mr.HGet("user:view:Hassanein", "version"))
	got, err := readRepo.FindByName(ctx, "Hassanein")
	require.NoError(t, err)
	assert.Len(t, got.Granted(models.AccessRead), 1)
}

func TestUserReadRepository_InvalidateFallsBackToSQL(t *testing.T) {
	writeRepo, readRepo, mr, _ := newCachedReadRepo(t)
	ctx := context.Background()
	versions := saveVersions(t, writeRepo, 2)

	readRepo.CacheUserView(ctx, versions[0])
	readRepo.InvalidateUserView(ctx, "Hassanein")
	require.False(t, mr.Exists("user:view:Hassanein"))

	got, err := readRepo.FindByName(ctx, "Hassanein")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, "2", mr.HGet("user:view:Hassanein", "version"))
}
