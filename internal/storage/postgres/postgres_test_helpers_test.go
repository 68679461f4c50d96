package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/domain/ids"
	"github.com/Togather-Foundation/eventplanner/internal/domain/users"
)

var (
	sharedOnce      sync.Once
	sharedInitErr   error
	sharedContainer *postgres.PostgresContainer
	sharedPool      *pgxpool.Pool
	sharedDBURL     string
)

const sharedContainerName = "eventplanner-storage-db"

func TestMain(m *testing.M) {
	code := m.Run()
	cleanupShared()
	os.Exit(code)
}

func setupPostgres(t *testing.T) (*Repository, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	initShared(t)
	resetDatabase(t, sharedPool)

	repo, err := NewRepository(sharedPool)
	require.NoError(t, err)
	return repo, sharedPool
}

func initShared(t *testing.T) {
	t.Helper()
	sharedOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		_ = os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

		container, err := postgres.Run(
			ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("eventplanner"),
			postgres.WithUsername("eventplanner"),
			postgres.WithPassword("eventplanner_dev"),
			testcontainers.WithReuseByName(sharedContainerName),
		)
		if err != nil {
			sharedInitErr = err
			return
		}
		sharedContainer = container

		dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			sharedInitErr = err
			return
		}
		sharedDBURL = dbURL

		migrationsPath := filepath.Join(projectRoot(), DefaultMigrationsPath)
		if err := migrateWithRetry(dbURL, migrationsPath, 10*time.Second); err != nil {
			sharedInitErr = err
			return
		}

		pool, err := NewPool(ctx, dbURL, PoolConfig{MaxConns: 20})
		if err != nil {
			sharedInitErr = err
			return
		}
		sharedPool = pool
	})

	require.NoError(t, sharedInitErr)
}

func cleanupShared() {
	if sharedPool != nil {
		sharedPool.Close()
	}
	// The reused container outlives the package run.
}

func resetDatabase(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	require.NotNil(t, pool, "shared pool is nil")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := pool.Query(ctx, `
SELECT tablename
  FROM pg_tables
 WHERE schemaname = 'public'
   AND tablename <> 'schema_migrations'
 ORDER BY tablename
`)
	require.NoError(t, err)
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		tables = append(tables, `"public"."`+strings.ReplaceAll(name, `"`, `""`)+`"`)
	}
	require.NoError(t, rows.Err())
	if len(tables) == 0 {
		return
	}

	_, err = pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" RESTART IDENTITY CASCADE")
	require.NoError(t, err)
}

func insertUser(t *testing.T, repo *Repository, name string, mutate ...func(*users.User)) *users.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &users.User{
		ID:        newID(t),
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Name:      name,
		Interests: []string{},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		Password:  "$2a$10$placeholderhashplaceholderhashplaceholderhashplacehold",
	}
	for _, fn := range mutate {
		fn(u)
	}
	require.NoError(t, repo.Users().Create(context.Background(), u))
	return u
}

func insertEvent(t *testing.T, repo *Repository, organizer *users.User, title string, mutate ...func(*events.Event)) *events.Event {
	t.Helper()
	start := time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(time.Microsecond)
	e := &events.Event{
		ID:          newID(t),
		OrganizerID: organizer.ID,
		Title:       title,
		Description: "An event used by the storage tests.",
		Category:    events.CategoryWorkshop,
		Status:      events.StatusActive,
		DateTime:    start,
		EndDateTime: start.Add(2 * time.Hour),
		Location:    events.Location{Venue: "Hall", Address: "1 Main St", City: "Toronto", Country: "Canada"},
		Capacity:    10,
		Currency:    events.CurrencyUSD,
		Images:      []events.Image{},
		Tags:        []string{"go"},
		Attendees:   []events.Attendee{},
		Sessions:    []events.Session{},
		Sponsors:    []events.Sponsor{},
		Settings:    events.DefaultSettings(),
		CreatedAt:   start.Add(-30 * 24 * time.Hour),
		UpdatedAt:   start.Add(-30 * 24 * time.Hour),
	}
	for _, fn := range mutate {
		fn(e)
	}
	require.NoError(t, repo.Events().Create(context.Background(), e))
	return e
}

func register(t *testing.T, repo *Repository, eventID, userID string) events.Attendee {
	t.Helper()
	var record events.Attendee
	_, err := repo.Events().Mutate(context.Background(), eventID, func(e *events.Event) ([]events.Notice, error) {
		a, err := e.Register(userID, time.Now().UTC())
		record = a
		return nil, err
	})
	require.NoError(t, err, fmt.Sprintf("register %s", userID))
	return record
}

func newID(t *testing.T) string {
	t.Helper()
	id, err := ids.NewULID()
	require.NoError(t, err)
	return id
}

func projectRoot() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
}

func migrateWithRetry(databaseURL, migrationsPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := MigrateUp(databaseURL, migrationsPath); err != nil {
			if time.Now().After(deadline) {
				return err
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}
		return nil
	}
}
