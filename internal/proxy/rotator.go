// Package proxy rotates outbound proxies and builds transports that dial through them.
package proxy

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"webvulnscan/internal/models"
)

// MaxFailures is the consecutive verification failure count at which a proxy is evicted.
const MaxFailures = 3

// Rotator hands out proxies round-robin or at random.
type Rotator struct {
	mu      sync.Mutex
	proxies []models.Proxy
	cursor  int
	rng     *rand.Rand

	// dial builds the client used to probe one proxy; replaced in tests.
	dial func(p models.Proxy, timeout time.Duration) (*http.Client, error)
}

// NewRotator copies the given entries into a new rotator.
func NewRotator(proxies []models.Proxy) *Rotator {
	list := make([]models.Proxy, len(proxies))
	copy(list, proxies)
	return &Rotator{
		proxies: list,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		dial:    probeClient,
	}
}

// Len returns the number of proxies currently in rotation.
func (r *Rotator) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.proxies)
}

// Next returns the proxy at the cursor and advances it, or nil when the list is empty.
func (r *Rotator) Next() *models.Proxy {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.proxies) == 0 {
		return nil
	}
	if r.cursor >= len(r.proxies) {
		r.cursor = 0
	}
	p := r.proxies[r.cursor]
	r.cursor = (r.cursor + 1) % len(r.proxies)
	return &p
}

// Random returns a uniformly chosen proxy, or nil when the list is empty.
func (r *Rotator) Random() *models.Proxy {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.proxies) == 0 {
		return nil
	}
	p := r.proxies[r.rng.Intn(len(r.proxies))]
	return &p
}

// Proxies returns a snapshot of the current entries.
func (r *Rotator) Proxies() []models.Proxy {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Proxy, len(r.proxies))
	copy(out, r.proxies)
	return out
}

// VerifyAll probes every proxy concurrently against endpoint. A proxy that fails
// has its failure counter incremented and is evicted once the counter reaches
// MaxFailures; a proxy that succeeds has its counter reset. It returns the
// number of proxies that passed.
func (r *Rotator) VerifyAll(ctx context.Context, endpoint string, timeout time.Duration) int {
	snapshot := r.Proxies()
	ok := make([]bool, len(snapshot))

	var wg conc.WaitGroup
	for i, p := range snapshot {
		wg.Go(func() {
			err := r.probe(ctx, p, endpoint, timeout)
			if err != nil {
				log.Warn().Err(err).Str("proxy", p.String()).Msg("Proxy verification failed")
				return
			}
			ok[i] = true
		})
	}
	wg.Wait()

	passed := 0
	results := make(map[string]bool, len(snapshot))
	for i, p := range snapshot {
		results[p.String()] = ok[i]
		if ok[i] {
			passed++
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.proxies[:0]
	for _, p := range r.proxies {
		passedProbe, probed := results[p.String()]
		switch {
		case !probed:
		case passedProbe:
			p.FailCount = 0
		default:
			p.FailCount++
		}
		if p.FailCount >= MaxFailures {
			log.Info().Str("proxy", p.String()).Int("failures", p.FailCount).Msg("Evicting proxy")
			continue
		}
		kept = append(kept, p)
	}
	r.proxies = kept
	if r.cursor >= len(r.proxies) {
		r.cursor = 0
	}
	return passed
}

func (r *Rotator) probe(ctx context.Context, p models.Proxy, endpoint string, timeout time.Duration) error {
	client, err := r.dial(p, timeout)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func probeClient(p models.Proxy, timeout time.Duration) (*http.Client, error) {
	transport, err := NewTransport(&p, TransportOptions{DialTimeout: timeout})
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}
