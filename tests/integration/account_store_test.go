package integration

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierchat/courier/internal/models"
	"github.com/courierchat/courier/internal/repositories"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	if os.Getenv("RUN_INTEGRATION_TESTS") == "" {
		os.Exit(0)
	}

	ctx := context.Background()
	var err error
	testDB, err = SetupTestDatabase(ctx)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	testDB.Teardown(ctx)
	os.Exit(code)
}

func resetTables(t *testing.T) {
	t.Helper()
	require.NoError(t, testDB.CleanupTables(context.Background()))
}

func TestAccountRepository_DuplicateEmailCaseInsensitive(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := repositories.NewAccountRepository(testDB.DB)

	_, err := repo.Create(ctx, "user@example.com", "hash", "first_user")
	require.NoError(t, err)

	// Same email with different casing hits the lower(email) index.
	_, err = repo.Create(ctx, "USER@example.com", "hash", "second_user")
	assert.ErrorIs(t, err, models.ErrDuplicateEmail)

	_, err = repo.Create(ctx, "other@example.com", "hash", "first_user")
	assert.ErrorIs(t, err, models.ErrDuplicateHandle)
}

func TestAccountRepository_ConcurrentRegistrationOneWinner(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := repositories.NewAccountRepository(testDB.DB)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Create(ctx, "raced@example.com", "hash", "raced_user")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent registration may win")
}

func TestAccountRepository_ConcurrentFailedLoginsLoseNoUpdates(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := repositories.NewAccountRepository(testDB.DB)

	account, err := SeedAccount(ctx, testDB.Pool, "user@example.com", "someone", "Sup3rSecret")
	require.NoError(t, err)

	const attempts = 10
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.IncrementFailedLogins(ctx, account.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, attempts, got.FailedLoginCount)
}

func TestAccountRepository_LockAndReset(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := repositories.NewAccountRepository(testDB.DB)

	account, err := SeedAccount(ctx, testDB.Pool, "user@example.com", "someone", "Sup3rSecret")
	require.NoError(t, err)

	until := time.Now().Add(2 * time.Hour)
	require.NoError(t, repo.Lock(ctx, account.ID, until))

	got, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLocked)
	require.NotNil(t, got.LockedUntil)
	assert.True(t, got.Locked(time.Now()))

	require.NoError(t, repo.MarkLoginSuccess(ctx, account.ID))
	got, err = repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLocked)
	assert.Zero(t, got.FailedLoginCount)
	assert.NotNil(t, got.LastLoginAt)

	// ResetLockout is idempotent on an unlocked account.
	require.NoError(t, repo.ResetLockout(ctx, account.ID))
}

func TestAccountRepository_GetByEmailIsCaseInsensitive(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := repositories.NewAccountRepository(testDB.DB)

	seeded, err := SeedAccount(ctx, testDB.Pool, "user@example.com", "someone", "Sup3rSecret")
	require.NoError(t, err)

	got, err := repo.GetByEmail(ctx, "USER@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, got.ID)
}

func TestAccountRepository_CredentialProjection(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := repositories.NewAccountRepository(testDB.DB)

	_, err := SeedAccount(ctx, testDB.Pool, "user@example.com", "someone", "Sup3rSecret")
	require.NoError(t, err)

	plain, err := repo.GetByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Empty(t, plain.CredentialHash, "default projection must not carry the credential")

	withCred, err := repo.GetByEmailWithCredential(ctx, "user@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, withCred.CredentialHash)
}
