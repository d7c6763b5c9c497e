package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestKey(t *testing.T) {
	if got := Key("Grey Blight Disease", "Severe"); got != "grey_blight_disease|severe" {
		t.Fatalf("unexpected key %q", got)
	}
	if Key(" brown  blight", "MILD") != Key("Brown Blight", "mild") {
		t.Fatal("keys should be normalised")
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(Config{TTL: 50 * time.Millisecond})
	t.Cleanup(func() { _ = store.Close(ctx) })

	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("expected empty cache")
	}
	if err := store.Set(ctx, "k", "spray copper"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	advice, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || advice != "spray copper" {
		t.Fatalf("unexpected get: %q %v %v", advice, ok, err)
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	store, err := NewRedis(Config{
		TTL:   time.Minute,
		Redis: &RedisConfig{Addr: mr.Addr()},
	})
	if err != nil {
		t.Fatalf("NewRedis error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(ctx) })

	key := Key("Red Leaf Spot", "Moderate")
	if err := store.Set(ctx, key, "prune and spray"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if !mr.Exists("leaf:advice:" + key) {
		t.Fatal("expected prefixed key in redis")
	}

	advice, ok, err := store.Get(ctx, key)
	if err != nil || !ok || advice != "prune and spray" {
		t.Fatalf("unexpected get: %q %v %v", advice, ok, err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats["total"] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := store.Get(ctx, key); ok {
		t.Fatal("expected key to expire")
	}
}

func TestFactory(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		kind    string
	}{
		{name: "default is memory", cfg: Config{}, kind: DriverMemory},
		{name: "none", cfg: Config{Driver: "none"}, kind: DriverNone},
		{name: "redis without config", cfg: Config{Driver: "redis"}, wantErr: true},
		{name: "unknown", cfg: Config{Driver: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer store.Close(context.Background())
			stats, _ := store.Stats(context.Background())
			if stats["type"] != tt.kind {
				t.Fatalf("expected %s store, got %v", tt.kind, stats["type"])
			}
		})
	}
}
