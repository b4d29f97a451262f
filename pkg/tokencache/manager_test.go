package tokencache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis and skips when none is running.
// Container-backed tests live in tests/integration.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func testKey() Key {
	return Key{TokenURL: "https://www.arcgis.com/sharing/rest/generateToken", Username: "jdoe", Referer: "https://www.arcgis.com"}
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client)
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
	if manager.Margin != DefaultMargin {
		t.Errorf("Margin = %v, want %v", manager.Margin, DefaultMargin)
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	entry := &Entry{Token: "abc", Expires: time.Now().Add(time.Hour), SSL: true}
	if err := manager.Set(ctx, testKey(), entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := manager.Get(ctx, testKey())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Token != "abc" || !got.SSL {
		t.Errorf("Get() = %+v", got)
	}
	if got.CachedAt.IsZero() {
		t.Error("CachedAt should be set")
	}

	ttl, err := manager.redis.TTL(ctx, testKey().String()).Result()
	if err != nil {
		t.Fatal(err)
	}
	if ttl > time.Hour-DefaultMargin || ttl <= 0 {
		t.Errorf("redis TTL = %v, want below %v", ttl, time.Hour-DefaultMargin)
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	if _, err := manager.Get(context.Background(), testKey()); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Set_ExpiredNotStored(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	entry := &Entry{Token: "abc", Expires: time.Now().Add(30 * time.Second)}
	if err := manager.Set(ctx, testKey(), entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	n, err := client.Exists(ctx, testKey().String()).Result()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("token inside the margin should not be stored")
	}
}

func TestManager_Get_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	if err := client.Set(ctx, testKey().String(), "not json", time.Hour).Err(); err != nil {
		t.Fatal(err)
	}

	if _, err := manager.Get(ctx, testKey()); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("Expected ErrInvalidEntry, got %v", err)
	}
	if n, _ := client.Exists(ctx, testKey().String()).Result(); n != 0 {
		t.Error("invalid entry should be deleted")
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	if err := manager.Set(ctx, testKey(), &Entry{Token: "abc", Expires: time.Now().Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := manager.Delete(ctx, testKey()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := manager.Get(ctx, testKey()); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after delete, got %v", err)
	}
}

func TestManager_Set_Nil(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	if err := NewManager(client).Set(context.Background(), testKey(), nil); err == nil {
		t.Error("Set(nil) should fail")
	}
}
