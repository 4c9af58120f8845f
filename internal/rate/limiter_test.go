package rate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
	lim := New(Config{
		RequestsPerSecond: 10,
		Burst:             5,
		Cooldown:          100 * time.Millisecond,
	})

	allowed := 0
	for i := 0; i < 10; i++ {
		if lim.Allow() {
			allowed++
		}
	}

	if allowed != 5 {
		t.Errorf("expected 5 allowed from burst, got %d", allowed)
	}
}

func TestLimiter_Refill(t *testing.T) {
	lim := New(Config{
		RequestsPerSecond: 100,
		Burst:             2,
		Cooldown:          0,
	})

	for lim.Allow() {
	}

	time.Sleep(50 * time.Millisecond)

	if !lim.Allow() {
		t.Error("expected token to be available after refill period")
	}
}

func TestLimiter_BurstCap(t *testing.T) {
	lim := New(Config{
		RequestsPerSecond: 1000,
		Burst:             3,
		Cooldown:          0,
	})

	// Tokens must not accumulate past the burst even after idling
	time.Sleep(100 * time.Millisecond)

	allowed := 0
	for i := 0; i < 10; i++ {
		if lim.Allow() {
			allowed++
		}
	}

	if allowed > 3 {
		t.Errorf("burst cap exceeded: got %d allowed, want <= 3", allowed)
	}
}

func TestLimiter_Wait(t *testing.T) {
	lim := New(Config{
		RequestsPerSecond: 100,
		Burst:             1,
		Cooldown:          0,
	})

	lim.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := lim.Wait(ctx); err != nil {
		t.Fatalf("expected Wait to succeed, got: %v", err)
	}
}

func TestLimiter_WaitContextCanceled(t *testing.T) {
	lim := New(Config{
		RequestsPerSecond: 1,
		Burst:             1,
		Cooldown:          0,
	})

	lim.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := lim.Wait(ctx); err == nil {
		t.Fatal("expected context error, got nil")
	}
}

func TestManager_PerVenueBuckets(t *testing.T) {
	mgr := NewManager(Config{
		RequestsPerSecond: 10,
		Burst:             5,
		Cooldown:          0,
	})

	zeroX1 := mgr.GetLimiter("api.0x.org")
	zeroX2 := mgr.GetLimiter("api.0x.org")
	odos := mgr.GetLimiter("api.odos.xyz")

	if zeroX1 != zeroX2 {
		t.Error("same venue should return the same limiter instance")
	}
	if zeroX1 == odos {
		t.Error("different venues should return different limiter instances")
	}
}

func TestManager_Wait(t *testing.T) {
	mgr := NewManager(Config{
		RequestsPerSecond: 100,
		Burst:             5,
		Cooldown:          0,
	})

	if err := mgr.Wait(context.Background(), "api.1inch.io"); err != nil {
		t.Fatalf("expected Wait to succeed, got: %v", err)
	}
}

func TestManager_ConcurrentGetLimiter(t *testing.T) {
	mgr := NewManager(Config{
		RequestsPerSecond: 10,
		Burst:             5,
		Cooldown:          0,
	})

	var wg sync.WaitGroup
	limiters := make([]*Limiter, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			limiters[idx] = mgr.GetLimiter("api.0x.org")
		}(i)
	}
	wg.Wait()

	for i := 1; i < 20; i++ {
		if limiters[i] != limiters[0] {
			t.Fatalf("limiter at index %d differs from index 0", i)
		}
	}
}
