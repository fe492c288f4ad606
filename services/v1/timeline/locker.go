package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker serializa escritas na timeline de um mesmo owner.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedMutex é o Locker de processo único.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: map[string]*keyedLock{}}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			k.release(key, l)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// ErrLockNotAcquired é devolvido quando o lock Redis não sai dentro do prazo.
var ErrLockNotAcquired = errors.New("timeline lock not acquired")

// Só apaga a chave se o token ainda for nosso.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Renova o prazo só enquanto o token ainda for nosso.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker é o Locker para várias réplicas: SET NX PX com token e
// liberação via Lua. Enquanto o lock está com a gente o TTL é renovado a
// cada TTL/3, então quem segura o lock por mais tempo que o TTL (paginação
// durante Controller.Apply, por exemplo) não o perde.
type RedisLocker struct {
	rdb   *redis.Client
	TTL   time.Duration
	Retry time.Duration
	Wait  time.Duration
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{
		rdb:   rdb,
		TTL:   10 * time.Second,
		Retry: 25 * time.Millisecond,
		Wait:  5 * time.Second,
	}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := fmt.Sprintf("timeline:lock:%s", key)
	token := uuid.NewString()
	deadline := time.Now().Add(r.Wait)
	for {
		ok, err := r.rdb.SetNX(ctx, redisKey, token, r.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockNotAcquired, key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.Retry):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.renew(redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// contexto próprio: o do chamador pode já ter sido cancelado
			_ = releaseScript.Run(context.Background(), r.rdb, []string{redisKey}, token).Err()
		})
	}, nil
}

// renew estende o TTL até stop fechar ou o token deixar de ser nosso.
func (r *RedisLocker) renew(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := r.TTL / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n, err := renewScript.Run(context.Background(), r.rdb, []string{redisKey}, token, r.TTL.Milliseconds()).Int()
			if err == nil && n == 0 {
				return
			}
		}
	}
}
