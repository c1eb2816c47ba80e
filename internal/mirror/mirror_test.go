package mirror

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/blockedby/loyalty-miniapp/internal/models"
)

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	gormStore, err := NewGORMStore(db)
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})

	return map[string]Store{
		"memory": NewMemoryStore(),
		"gorm":   gormStore,
		"redis":  NewRedisStore(rdb, "test:", time.Hour),
	}
}

func testParticipant() *models.Participant {
	return &models.Participant{
		ID:          "b3e94e12-1eac-45fa-9df2-77081c23a90f",
		PhoneNumber: "+79991234567",
		Balance:     5000,
		TelegramProfile: &models.TelegramProfile{
			ID:        "123456789",
			FirstName: "Иван",
			Username:  "ivan",
		},
	}
}

func TestStore_Contract(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := store.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, "k", "v1"))
			require.NoError(t, store.Set(ctx, "k", "v2"))
			v, ok, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v2", v, "writes are whole overwrites")

			require.NoError(t, store.Delete(ctx, "k", "never-set"))
			_, ok, err = store.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Delete(ctx))
		})
	}
}

func TestMirror_SessionRoundTrip(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := New(store)

			require.NoError(t, m.SaveSession(ctx, testParticipant()))
			require.NoError(t, m.SaveCart(ctx, []models.CartItem{{GUID: "1", Name: "Кофеварка", Price: 2500, Quantity: 2}}))

			snap, err := m.Load(ctx)
			require.NoError(t, err)
			require.NotNil(t, snap.Participant)
			assert.Equal(t, 5000.0, snap.Participant.Balance)
			assert.Equal(t, "+79991234567", snap.PhoneNumber)
			assert.Equal(t, "Иван", snap.Profile.FirstName)
			require.Len(t, snap.Cart, 1)
			assert.Equal(t, 2, snap.Cart[0].Quantity)
		})
	}
}

func TestMirror_ClearIdentityKeepsCart(t *testing.T) {
	ctx := context.Background()
	m := New(NewMemoryStore())

	require.NoError(t, m.SaveSession(ctx, testParticipant()))
	require.NoError(t, m.SaveCart(ctx, []models.CartItem{{GUID: "1", Quantity: 1}}))
	require.NoError(t, m.ClearIdentity(ctx))

	snap, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.Participant)
	assert.Empty(t, snap.PhoneNumber)
	assert.Len(t, snap.Cart, 1)
}

func TestMirror_ClearRemovesEverything(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := New(store)

	require.NoError(t, m.SaveSession(ctx, testParticipant()))
	require.NoError(t, m.SaveCart(ctx, nil))
	require.NoError(t, m.Clear(ctx))
	assert.Equal(t, 0, store.Len())

	// clearing twice is harmless
	require.NoError(t, m.Clear(ctx))
}

func TestMirror_CorruptEntryIsIgnored(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, KeyParticipant, "{broken"))
	require.NoError(t, store.Set(ctx, KeyCart, "not a list"))

	snap, err := New(store).Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.Participant)
	assert.Empty(t, snap.Cart)
}

func TestRedisStore_TTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedisStore(rdb, "", time.Minute)
	require.NoError(t, s.Set(context.Background(), KeyCart, "[]"))

	mr.FastForward(2 * time.Minute)

	_, ok, err := s.Get(context.Background(), KeyCart)
	require.NoError(t, err)
	assert.False(t, ok, "entries expire with the session")
}
