package timeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(context.Background(), "Incident:1")
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("at most one holder expected, saw %d", maxInside)
	}
	if len(k.locks) != 0 {
		t.Fatalf("released keys should be dropped, %d left", len(k.locks))
	}
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	k := NewKeyedMutex()
	unlock, _ := k.Lock(context.Background(), "a")
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := k.Lock(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	other, err := k.Lock(context.Background(), "b")
	if err != nil {
		t.Fatalf("other keys must not block: %v", err)
	}
	other()
}

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l := NewRedisLocker(rdb)
	l.Retry = 5 * time.Millisecond
	l.Wait = 50 * time.Millisecond
	return l, mr
}

func TestRedisLockerAcquireRelease(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "Incident:1")
	if err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("timeline:lock:Incident:1") {
		t.Fatal("lock key should exist while held")
	}
	if _, err := l.Lock(ctx, "Incident:1"); !errors.Is(err, ErrLockNotAcquired) {
		t.Fatalf("second holder should time out, got %v", err)
	}
	unlock()
	if mr.Exists("timeline:lock:Incident:1") {
		t.Fatal("lock key should be gone after unlock")
	}
	again, err := l.Lock(ctx, "Incident:1")
	if err != nil {
		t.Fatalf("lock should be free again: %v", err)
	}
	again()
}

func TestRedisLockerDoesNotReleaseForeignToken(t *testing.T) {
	l, mr := newRedisLocker(t)
	unlock, err := l.Lock(context.Background(), "Monitor:9")
	if err != nil {
		t.Fatal(err)
	}
	// o TTL expirou e outra réplica pegou o lock
	if err := mr.Set("timeline:lock:Monitor:9", "someone-else"); err != nil {
		t.Fatal(err)
	}
	unlock()
	got, _ := mr.Get("timeline:lock:Monitor:9")
	if got != "someone-else" {
		t.Fatalf("foreign lock was released, value now %q", got)
	}
}

func TestRedisLockerRenewsWhileHeld(t *testing.T) {
	l, mr := newRedisLocker(t)
	l.TTL = 300 * time.Millisecond
	const key = "timeline:lock:Incident:7"

	unlock, err := l.Lock(context.Background(), "Incident:7")
	if err != nil {
		t.Fatal(err)
	}
	// quase expirado: só a renovação o mantém vivo
	mr.FastForward(250 * time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for mr.TTL(key) <= 200*time.Millisecond {
		if time.Now().After(deadline) {
			t.Fatalf("lock was not renewed, ttl %v", mr.TTL(key))
		}
		time.Sleep(10 * time.Millisecond)
	}
	mr.FastForward(150 * time.Millisecond)
	if !mr.Exists(key) {
		t.Fatal("renewed lock expired while held")
	}

	unlock()
	if mr.Exists(key) {
		t.Fatal("lock key should be gone after unlock")
	}
}
