//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dtroode/authkeeper-server/internal/model"
	repo "github.com/dtroode/authkeeper-server/internal/repository/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "authkeeper_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/authkeeper_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func connect(t *testing.T) *repo.Connection {
	t.Helper()
	conn, err := repo.NewConnection(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func createUser(t *testing.T, conn *repo.Connection) model.User {
	t.Helper()
	u, err := repo.NewUserRepository(conn.DB).Create(context.Background(), model.User{
		Username:     "user-" + uuid.NewString()[:8],
		Role:         model.RoleUser,
		PasswordHash: "$2a$10$hash",
	})
	require.NoError(t, err)
	return u
}

func newLedgerRow(userID uuid.UUID) model.RefreshToken {
	now := time.Now().UTC().Truncate(time.Second)
	return model.RefreshToken{
		JTI:       uuid.NewString(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(7 * 24 * time.Hour),
		IPAddress: "127.0.0.1",
		UserAgent: "integration",
	}
}

func TestUserRepository_Integration(t *testing.T) {
	ctx := context.Background()
	conn := connect(t)
	require.NoError(t, conn.Ping(ctx))

	users := repo.NewUserRepository(conn.DB)
	u := createUser(t, conn)

	byName, err := users.GetByUsername(ctx, u.Username)
	require.NoError(t, err)
	require.Equal(t, u.ID, byName.ID)

	_, err = users.Create(ctx, model.User{Username: u.Username, PasswordHash: "x"})
	require.ErrorIs(t, err, model.ErrUserExists)

	require.NoError(t, users.UpdatePassword(ctx, u.ID, "$2a$10$other"))
	byID, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "$2a$10$other", byID.PasswordHash)
}

func TestRefreshTokenRepository_Integration(t *testing.T) {
	ctx := context.Background()
	conn := connect(t)
	ledger := repo.NewRefreshTokenRepository(conn.DB)
	u := createUser(t, conn)

	row := newLedgerRow(u.ID)
	require.NoError(t, ledger.Create(ctx, row))
	require.ErrorIs(t, ledger.Create(ctx, row), model.ErrDuplicateIdentity)

	active, err := ledger.GetActiveByJTI(ctx, row.JTI)
	require.NoError(t, err)
	require.Equal(t, model.SessionActive, active.State(time.Now()))

	n, err := ledger.RevokeByJTI(ctx, row.JTI)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = ledger.RevokeByJTI(ctx, row.JTI)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	_, err = ledger.GetActiveByJTI(ctx, row.JTI)
	require.ErrorIs(t, err, model.ErrNotFound)

	revoked, err := ledger.GetByJTI(ctx, row.JTI)
	require.NoError(t, err)
	require.Equal(t, model.SessionRevoked, revoked.State(time.Now()))

	for i := 0; i < 3; i++ {
		require.NoError(t, ledger.Create(ctx, newLedgerRow(u.ID)))
	}
	n, err = ledger.RevokeAllByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestRefreshTokenRepository_LedgerOutlivesUserDelete(t *testing.T) {
	ctx := context.Background()
	conn := connect(t)
	ledger := repo.NewRefreshTokenRepository(conn.DB)
	u := createUser(t, conn)

	row := newLedgerRow(u.ID)
	require.NoError(t, ledger.Create(ctx, row))

	_, err := conn.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, u.ID)
	require.Error(t, err)

	kept, err := ledger.GetByJTI(ctx, row.JTI)
	require.NoError(t, err)
	require.Equal(t, u.ID, kept.UserID)
}

func TestRefreshTokenRepository_RotateSingleWinner(t *testing.T) {
	ctx := context.Background()
	conn := connect(t)
	ledger := repo.NewRefreshTokenRepository(conn.DB)
	u := createUser(t, conn)

	parent := newLedgerRow(u.ID)
	require.NoError(t, ledger.Create(ctx, parent))

	const workers = 16
	start := make(chan struct{})
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = ledger.Rotate(ctx, parent.JTI, newLedgerRow(u.ID))
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, model.ErrTokenRevoked):
		default:
			t.Fatalf("unexpected rotate error: %v", err)
		}
	}
	require.Equal(t, 1, winners)

	var active int
	err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM refresh_tokens WHERE user_id = $1 AND revoked = FALSE`, u.ID,
	).Scan(&active)
	require.NoError(t, err)
	require.Equal(t, 1, active)
}
