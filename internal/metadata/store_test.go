package metadata

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/postgres"
)

// openTestStore connects to the database named by LS_TEST_POSTGRES_HOST and
// skips the test when it is unset or unreachable.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	host := os.Getenv("LS_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("LS_TEST_POSTGRES_HOST not set")
	}
	cfg := config.PostgresConfig{
		Host:            host,
		Port:            5432,
		Database:        envOr("LS_TEST_POSTGRES_DB", "lyrics"),
		User:            envOr("LS_TEST_POSTGRES_USER", "lyrics"),
		Password:        envOr("LS_TEST_POSTGRES_PASSWORD", "lyrics"),
		SSLMode:         "disable",
		ConnMaxLifetime: time.Minute,
	}
	client, err := postgres.New(context.Background(), cfg)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	store := NewStore(client)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestStoreImportAndLookup(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	tracks := []Track{
		{ID: "TR1", Artist: "Artist One", Title: "First, Song"},
		{ID: "TR2", Artist: "Artist Two", Title: "Second"},
	}
	require.NoError(t, store.Import(ctx, tracks))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.Lookup(ctx, "TR1")
	require.NoError(t, err)
	assert.Equal(t, tracks[0], got)

	_, err = store.Lookup(ctx, "TR404")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, store.Import(ctx, tracks[1:]))
	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "import replaces the previous contents")
}
