// Package httpclient implements the per-config reusable HTTP client cache
// (spec §2 "HTTP Client Cache", §10.5): one *http.Client per (config id,
// timeout) pair, rebuilt only when the timeout changes, mirroring the
// teacher's tts.ProviderSet mutex-guarded lazy pool. Request pacing is the
// Rate/Concurrency Scheduler's job (§4.1's token bucket, gating every
// translation/TTS call through scheduler.Manager.Acquire) — this cache only
// saves sockets/TLS handshakes across calls to the same config.
package httpclient

import (
	"net/http"
	"sync"
	"time"
)

type cachedClient struct {
	client  *http.Client
	timeout time.Duration
}

// Cache is a mutex-guarded pool of HTTP clients keyed by config id.
type Cache struct {
	mu      sync.Mutex
	clients map[string]*cachedClient
}

// NewCache returns an empty client cache.
func NewCache() *Cache {
	return &Cache{clients: make(map[string]*cachedClient)}
}

// Get returns the cached client for configID, recreating it if the
// requested timeout differs from what is cached — the same
// recreate-on-mismatch rule the teacher's ProviderSet applies to provider
// configs.
func (c *Cache) Get(configID string, timeout time.Duration) *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	cc, ok := c.clients[configID]
	if ok && cc.timeout == timeout {
		return cc.client
	}

	cc = &cachedClient{client: &http.Client{Timeout: timeout}, timeout: timeout}
	c.clients[configID] = cc
	return cc.client
}

// Remove evicts a cached client, forcing recreation on next Get.
func (c *Cache) Remove(configID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, configID)
}
