package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/eaglebank/authorization-service/internal/db/dbtest"
	"github.com/eaglebank/authorization-service/internal/repository"
	"github.com/eaglebank/authorization-service/shared/models"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	file, err := LoadFile("testdata/users.yaml")
	require.NoError(t, err)
	require.Len(t, file.Users, 2)

	h := file.Users[0]
	assert.Equal(t, "Hassanein", h.Name)
	require.Len(t, h.Accounts, 2)
	assert.Equal(t, "Hassanein", h.Accounts[0].AccountHolderName)
	assert.True(t, h.Accounts[0].Balance.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, models.SubtypePayment, h.Accounts[0].Type)
	assert.Equal(t, models.SubtypeSavings, h.Accounts[1].Type)
}

func TestDecode_Rejects(t *testing.T) {
	tests := map[string]string{
		"duplicate account": `
users:
  - name: Alvin
    accounts:
      - {accountNumber: A1, balance: "1", type: PAYMENT}
      - {accountNumber: A1, balance: "2", type: SAVINGS}
`,
		"negative balance": `
users:
  - name: Alvin
    accounts:
      - {accountNumber: A1, balance: "-1", type: PAYMENT}
`,
		"unknown subtype": `
users:
  - name: Alvin
    accounts:
      - {accountNumber: A1, balance: "1", type: CHECKING}
`,
		"missing name": `
users:
  - accounts: []
`,
		"duplicate user": `
users:
  - name: Alvin
  - name: Alvin
`,
		"unknown field": `
users:
  - name: Alvin
    nickname: Al
`,
		"malformed id": `
users:
  - name: Alvin
    id: alvin
`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestApply_CreatesThenOverwrites(t *testing.T) {
	stores := dbtest.OpenSQLite(t)
	repo := repository.NewUserWriteRepository(stores.Write)
	ctx := context.Background()

	file, err := LoadFile("testdata/users.yaml")
	require.NoError(t, err)

	n, err := Apply(ctx, repo, nil, file, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	first, err := repo.FindByName(ctx, "Alvin")
	require.NoError(t, err)
	assert.Len(t, first.Accounts, 2)
	assert.True(t, strings.HasPrefix(first.ID, "usr-"))

	// A grant recorded between seeds is cleared by the re-seed.
	first.Grant(models.AccessRead, models.AccountSnapshot{AccountNumber: "X"})
	_, err = repo.Save(ctx, first)
	require.NoError(t, err)

	_, err = Apply(ctx, repo, nil, file, nil)
	require.NoError(t, err)

	second, err := repo.FindByName(ctx, "Alvin")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Empty(t, second.Granted(models.AccessRead))
	assert.Equal(t, int64(3), second.Version)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestApply_ReplacesViewFromEarlierStore(t *testing.T) {
	stores := dbtest.OpenSQLite(t)
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := repository.NewUserWriteRepository(stores.Write)
	readRepo := repository.NewUserReadRepository(stores.Read, client)
	ctx := context.Background()

	// A view left behind by a store that had reached version 5.
	readRepo.CacheUserView(ctx, &models.UserRecord{Name: "Alvin", Version: 5, Grants: models.Grants{
		models.AccessRead: {{AccountNumber: "GONE", AccountSubtype: models.SubtypePayment}},
	}})

	file, err := LoadFile("testdata/users.yaml")
	require.NoError(t, err)
	_, err = Apply(ctx, repo, readRepo, file, nil)
	require.NoError(t, err)

	assert.Equal(t, "1", mr.HGet("user:view:Alvin", "version"))
	got, err := readRepo.FindByName(ctx, "Alvin")
	require.NoError(t, err)
	assert.Empty(t, got.Granted(models.AccessRead))
	assert.Len(t, got.Accounts, 2)
}
