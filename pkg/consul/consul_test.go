package consul

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/testcontainers/testcontainers-go"
	tcconsul "github.com/testcontainers/testcontainers-go/modules/consul"
)

func setupConsul(t *testing.T) *api.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcconsul.Run(ctx, "consul:1.15")
	if err != nil {
		t.Fatalf("failed to start consul container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.ApiEndpoint(ctx)
	if err != nil {
		t.Fatalf("failed to get endpoint: %v", err)
	}

	client, err := api.NewClient(&api.Config{
		Address: endpoint,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	return client
}

// waitFor polls a condition until it returns true or the timeout is reached.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestStore_GetAbsent(t *testing.T) {
	client := setupConsul(t)
	s := New(client)

	_, ok, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected absent key")
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	client := setupConsul(t)
	s := New(client)
	ctx := context.Background()

	if err := s.Set(ctx, "retries", []byte(`5`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	raw, ok, err := s.Get(ctx, "retries")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || string(raw) != `5` {
		t.Errorf("expected '5', got %q ok=%v", raw, ok)
	}

	if err := s.Delete(ctx, "retries"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "retries"); ok {
		t.Error("expected key to be gone after Delete")
	}
}

func TestStore_WithPrefix(t *testing.T) {
	client := setupConsul(t)
	s := New(client, WithPrefix("app/settings"))
	ctx := context.Background()

	if err := s.Set(ctx, "retries", []byte(`5`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	pair, _, err := client.KV().Get("app/settings/retries", nil)
	if err != nil {
		t.Fatalf("KV get failed: %v", err)
	}
	if pair == nil || string(pair.Value) != `5` {
		t.Errorf("expected prefixed key 'app/settings/retries' to hold '5', got %v", pair)
	}

	raw, ok, err := s.Get(ctx, "retries")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || string(raw) != `5` {
		t.Errorf("expected '5', got %q ok=%v", raw, ok)
	}
}

func TestStore_WatchReceivesSet(t *testing.T) {
	client := setupConsul(t)
	s := New(client)
	ctx := context.Background()

	var mu sync.Mutex
	var got []byte
	cancel, err := s.Watch(ctx, "retries", func(raw []byte, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		if ok {
			got = raw
		}
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer cancel()

	if err := s.Set(ctx, "retries", []byte(`10`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if !waitFor(t, 10*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return string(got) == `10`
	}) {
		t.Fatal("timeout waiting for blocking query notification")
	}
}

func TestStore_WatchReceivesDelete(t *testing.T) {
	client := setupConsul(t)
	s := New(client)
	ctx := context.Background()

	if err := s.Set(ctx, "retries", []byte(`10`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var mu sync.Mutex
	removed := false
	cancel, err := s.Watch(ctx, "retries", func(_ []byte, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		if !ok {
			removed = true
		}
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer cancel()

	if err := s.Delete(ctx, "retries"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if !waitFor(t, 10*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return removed
	}) {
		t.Fatal("timeout waiting for delete notification")
	}
}
