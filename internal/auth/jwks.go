package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var (
	ErrKeyNotFound  = errors.New("verification key not found")
	ErrRateLimited  = errors.New("key set lookup rate limited")
	errJWKSResponse = errors.New("unexpected key set response")
)

const maxJWKSBodyBytes = 1 << 20

// JWKSConfig tunes the remote key set client.
type JWKSConfig struct {
	URI               string
	FetchTimeout      time.Duration
	RequestsPerMinute int
}

// JWKSClient resolves verification keys from a published key set.
// Fetched keys are cached for the process lifetime; cache misses trigger a
// refetch bounded by a token-bucket limiter, and concurrent misses share one
// fetch that consumes a single limiter token.
type JWKSClient struct {
	uri     string
	client  *http.Client
	limiter *rate.Limiter
	group   singleflight.Group
	logger  *zap.Logger

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

var _ KeySource = (*JWKSClient)(nil)

// NewJWKSClient builds a client. httpClient may be nil.
func NewJWKSClient(cfg JWKSConfig, httpClient *http.Client, logger *zap.Logger) *JWKSClient {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 10
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	client := *httpClient
	if client.Timeout == 0 || client.Timeout > cfg.FetchTimeout {
		client.Timeout = cfg.FetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	perRequest := time.Minute / time.Duration(cfg.RequestsPerMinute)
	return &JWKSClient{
		uri:     cfg.URI,
		client:  &client,
		limiter: rate.NewLimiter(rate.Every(perRequest), cfg.RequestsPerMinute),
		logger:  logger,
		keys:    make(map[string]*rsa.PublicKey),
	}
}

// Key returns the cached key for kid, fetching the key set on a miss.
func (c *JWKSClient) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if kid == "" {
		return nil, ErrKeyNotFound
	}
	if key, ok := c.cached(kid); ok {
		return key, nil
	}

	// The shared fetch outlives any single caller; the http.Client timeout bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("jwks", func() (interface{}, error) {
		if !c.limiter.Allow() {
			return nil, ErrRateLimited
		}
		return nil, c.refresh(fetchCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if key, ok := c.cached(kid); ok {
		return key, nil
	}
	return nil, ErrKeyNotFound
}

func (c *JWKSClient) cached(kid string) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.keys[kid]
	return key, ok
}

func (c *JWKSClient) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.uri, nil)
	if err != nil {
		return fmt.Errorf("build key set request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch key set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", errJWKSResponse, resp.StatusCode)
	}

	var set JWKSet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBodyBytes)).Decode(&set); err != nil {
		return fmt.Errorf("%w: %v", errJWKSResponse, err)
	}

	fetched := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Kid == "" {
			continue
		}
		if jwk.Alg != "" && jwk.Alg != accessMethod.Alg() {
			continue
		}
		key, err := jwk.RSAPublicKey()
		if err != nil {
			c.logger.Warn("skipping malformed jwk", zap.String("kid", jwk.Kid), zap.Error(err))
			continue
		}
		fetched[jwk.Kid] = key
	}

	c.mu.Lock()
	for kid, key := range fetched {
		c.keys[kid] = key
	}
	c.mu.Unlock()

	c.logger.Debug("key set refreshed", zap.Int("keys", len(fetched)))
	return nil
}
