package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"time"
)

var (
	keyOnce sync.Once
	rsaKey  *rsa.PrivateKey
)

// RSAKey returns a process-wide 2048-bit test key.
func RSAKey() *rsa.PrivateKey {
	keyOnce.Do(func() {
		var err error
		rsaKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
	})
	return rsaKey
}

// Clock is a settable, second-aligned time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Unix(1_700_000_000, 0)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
