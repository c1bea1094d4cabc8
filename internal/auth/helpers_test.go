package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
	otherKey    *rsa.PrivateKey
)

func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	testKeyOnce.Do(func() {
		var err error
		testKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		otherKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
	})
	return testKey, otherKey
}

func testMaterial(t *testing.T) *KeyMaterial {
	t.Helper()
	private, _ := testKeys(t)
	km, err := NewKeyMaterial(private, []byte("refresh-secret-for-tests"))
	require.NoError(t, err)
	return km
}

func staticKeysFor(t *testing.T, km *KeyMaterial) StaticKeys {
	t.Helper()
	signing, err := km.SigningKey()
	require.NoError(t, err)
	return StaticKeys{signing.ID: &signing.Private.PublicKey}
}

// fixedClock is whole-second aligned because JWT NumericDate truncates to seconds.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
