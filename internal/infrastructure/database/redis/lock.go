package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dossier-engine/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.CodeLockNotAcquired, "failed to acquire lock")
	ErrLockNotHeld     = errors.New(errors.CodeLockNotAcquired, "lock not held by this owner")
)

var mutexUnlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var mutexExtendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Locker hands out SET NX mutexes.  A held mutex is kept alive by a
// watchdog that extends it every third of its TTL until Release.
type Locker struct {
	client *Client
	log    logging.Logger
}

// NewLocker returns a Locker over client.
func NewLocker(client *Client, log logging.Logger) *Locker {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Locker{client: client, log: log.Named("lock")}
}

var _ app.Locker = (*Locker)(nil)

// LockKey is the Redis key of the mutex named name.
func (l *Locker) LockKey(name string) string {
	return l.client.Key("lock", "mutex", name)
}

// Acquire tries once.  A key held by another owner yields
// CodeLockNotAcquired.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (app.Lock, error) {
	key := l.LockKey(name)
	value := uuid.New().String()
	ok, err := l.client.GetUnderlyingClient().SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to set lock")
	}
	if !ok {
		return nil, ErrLockNotAcquired.WithDetail(name)
	}

	m := &mutex{client: l.client, key: key, value: value, log: l.log.With(logging.String("lock", name))}
	m.startWatchdog(ttl)
	return m, nil
}

type mutex struct {
	client *Client
	key    string
	value  string
	log    logging.Logger

	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func (m *mutex) extend(ctx context.Context, ttl time.Duration) (bool, error) {
	res, err := mutexExtendScript.Run(ctx, m.client.GetUnderlyingClient(), []string{m.key}, m.value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (m *mutex) startWatchdog(ttl time.Duration) {
	interval := ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.watchdog(ctx, interval, ttl)
}

func (m *mutex) watchdog(ctx context.Context, interval, ttl time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := m.extend(ctx, ttl)
			if err != nil {
				if ctx.Err() == nil {
					m.log.Error("Watchdog failed to extend lock", logging.Err(err))
				}
				return
			}
			if !ok {
				m.log.Warn("Watchdog lost lock")
				return
			}
		}
	}
}

// Release stops the watchdog and deletes the key if still owned.  Calling
// it twice returns ErrLockNotHeld the second time.
func (m *mutex) Release(ctx context.Context) error {
	m.once.Do(func() {
		m.cancel()
		<-m.done
	})
	res, err := mutexUnlockScript.Run(ctx, m.client.GetUnderlyingClient(), []string{m.key}, m.value).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to release lock")
	}
	if res == 0 {
		return ErrLockNotHeld
	}
	return nil
}
