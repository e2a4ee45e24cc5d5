package testsupport

import (
	"context"
	"testing"
)

func TestRedisClientIsCleanedBetweenTests(t *testing.T) {
	client := NewTestRedis(t)
	if err := client.Set(context.Background(), "integration-key", "value", 0).Err(); err != nil {
		t.Fatalf("failed to set key: %v", err)
	}

	val, err := client.Get(context.Background(), "integration-key").Result()
	if err != nil {
		t.Fatalf("failed to get key: %v", err)
	}

	if val != "value" {
		t.Fatalf("unexpected redis value: %s", val)
	}

	// A second helper flushes the database, so the key must be gone for it.
	other := NewTestRedis(t)
	if n, err := other.Exists(context.Background(), "integration-key").Result(); err != nil || n != 0 {
		t.Fatalf("expected flushed database, exists=%d err=%v", n, err)
	}
}
