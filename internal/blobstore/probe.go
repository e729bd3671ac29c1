package blobstore

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// probeTimeout bounds the reachability check so a misconfigured endpoint
// fails fast instead of eating into per-file retry budgets.
const probeTimeout = 5 * time.Second

// ProbeResult is a cached reachability verdict for a storage endpoint.
type ProbeResult struct {
	Reachable bool
	Err       error
	CheckedAt time.Time
}

// ProbeCache caches reachability probe results with a TTL. It is explicit
// injected state rather than a package-level global so tests and callers
// control its lifetime and clock.
type ProbeCache struct {
	mu      sync.RWMutex
	results map[string]ProbeResult
	ttl     time.Duration
	now     func() time.Time
}

// NewProbeCache creates a probe cache with the given TTL.
func NewProbeCache(ttl time.Duration) *ProbeCache {
	return &ProbeCache{
		results: make(map[string]ProbeResult),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached result for url and whether it is still fresh.
func (c *ProbeCache) Get(url string) (ProbeResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.results[url]
	if !ok || c.now().Sub(res.CheckedAt) > c.ttl {
		return ProbeResult{}, false
	}
	return res, true
}

// Invalidate drops the cached result for url.
func (c *ProbeCache) Invalidate(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.results, url)
}

func (c *ProbeCache) set(url string, res ProbeResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res.CheckedAt = c.now()
	c.results[url] = res
}

// Check performs (or reuses) a reachability probe against the given URL.
// Any HTTP response, including 4xx, counts as reachable: the probe only
// screens out endpoints that cannot be reached at all for cross-origin
// requests. Transport-level failures are unreachable.
func (c *ProbeCache) Check(ctx context.Context, client *http.Client, url string) error {
	if res, ok := c.Get(url); ok {
		if res.Reachable {
			return nil
		}
		return res.Err
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("building probe request for %s: %w", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		probeErr := fmt.Errorf("storage endpoint %s is unreachable (preflight probe failed): %w", url, err)
		c.set(url, ProbeResult{Reachable: false, Err: probeErr})
		log.Printf("[ProbeCache] Probe FAILED for %s: %v", url, err)
		return probeErr
	}
	resp.Body.Close()

	c.set(url, ProbeResult{Reachable: true})
	log.Printf("[ProbeCache] Probe OK for %s (status %d)", url, resp.StatusCode)
	return nil
}
