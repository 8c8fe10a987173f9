package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardsmith/cardsmith-server-go/internal/config"
	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

const yamlDoc = `
name: Pairs
players: {min: 2, max: 4}
setup: {cardsPerPlayer: 5}
actions: [draw, pass]
winConditions:
  - type: first_to_empty
`

const jsonDoc = `{"winConditions":[{"type":"first_to_empty"}],"actions":["draw","pass"],
"setup":{"cardsPerPlayer":5},"players":{"max":4,"min":2},"name":"Pairs"}`

func TestFingerprintIgnoresSourceFormat(t *testing.T) {
	fromYAML, err := schema.ParseYAML([]byte(yamlDoc))
	require.NoError(t, err)
	fromJSON, err := schema.ParseJSON([]byte(jsonDoc))
	require.NoError(t, err)

	a, err := Fingerprint(fromYAML)
	require.NoError(t, err)
	b, err := Fingerprint(fromJSON)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	fromJSON.Setup.CardsPerPlayer = 6
	c, err := Fingerprint(fromJSON)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSchemaRepositoryRoundTrip(t *testing.T) {
	url := os.Getenv("CARDSMITH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CARDSMITH_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := NewDB(ctx, config.DatabaseConfig{URL: url}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer db.Close()

	repo := NewSchemaRepository(db, zaptest.NewLogger(t))
	require.NoError(t, repo.EnsureSchema(ctx))

	rules, err := schema.Template("crazy-eights")
	require.NoError(t, err)
	rules.Name = "Crazy Eights " + time.Now().Format(time.RFC3339Nano)

	saved, err := repo.Save(ctx, rules)
	require.NoError(t, err)
	again, err := repo.Save(ctx, rules)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, again.ID)

	got, err := repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, rules.Name, got.Name)
	assert.Equal(t, saved.Fingerprint, got.Fingerprint)

	byFP, err := repo.GetByFingerprint(ctx, saved.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byFP.ID)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrSchemaNotFound))
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("CARDSMITH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CARDSMITH_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	cache := NewSnapshotCacheFromClient(redis.NewClient(&redis.Options{Addr: addr}), time.Minute)
	defer cache.Close()
	require.NoError(t, cache.Ping(ctx))

	id := "test-" + time.Now().Format("150405.000000000")
	view := &engine.View{SessionID: id, GameName: "Pairs", Status: engine.StatusActive, Turn: 3}
	require.NoError(t, cache.Put(ctx, id, view))

	got, err := cache.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, view.GameName, got.GameName)
	assert.Equal(t, 3, got.Turn)

	require.NoError(t, cache.Delete(ctx, id))
	_, err = cache.Get(ctx, id)
	assert.True(t, errors.Is(err, ErrSnapshotNotFound))
}
