// Package crawler discovers same-origin pages breadth first, one depth layer at a time.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"webvulnscan/internal/config"
	"webvulnscan/internal/models"
	"webvulnscan/internal/util"
)

// ErrSeedUnreachable is returned when the seed itself could not be contacted.
var ErrSeedUnreachable = errors.New("seed url unreachable")

// Fetcher retrieves one URL. Implementations never return nil.
type Fetcher interface {
	Fetch(ctx context.Context, url string) *models.FetchResult
}

// RedirectFollower is implemented by fetchers that let the caller veto
// redirect hops. follow gets the canonical target of each hop.
type RedirectFollower interface {
	FetchFollowing(ctx context.Context, url string, follow func(next string) bool) *models.FetchResult
}

// VisitedStore mirrors claimed URLs outside the process.
type VisitedStore interface {
	Claim(ctx context.Context, url string) (bool, error)
}

// VisitFunc receives every fetch result together with its crawl depth. It runs
// on the worker goroutine that performed the fetch.
type VisitFunc func(fr *models.FetchResult, depth int)

// Option configures a Frontier.
type Option func(*Frontier)

// WithStore mirrors claimed URLs into store. URLs the store already holds are skipped.
func WithStore(store VisitedStore) Option {
	return func(f *Frontier) {
		f.store = store
	}
}

// Summary describes a finished traversal.
type Summary struct {
	Visited     []string
	Discovered  int
	Depth       int
	RateLimited []string
	Canceled    int
	Truncated   int
	Resumed     int
	Seed        *models.FetchResult
}

// Frontier is a bounded breadth-first crawler.
type Frontier struct {
	maxDepth    int
	maxURLs     int
	concurrency int
	sources     bool
	filter      *util.PathFilter
	fetcher     Fetcher
	store       VisitedStore
}

// NewFrontier builds a frontier from the crawl bounds in cfg.
func NewFrontier(cfg *config.ScanConfig, fetcher Fetcher, opts ...Option) (*Frontier, error) {
	filter, err := util.NewPathFilter(cfg.ExcludedPaths)
	if err != nil {
		return nil, err
	}
	f := &Frontier{
		maxDepth:    cfg.MaxDepth,
		maxURLs:     cfg.MaxURLs,
		concurrency: cfg.Concurrency,
		sources:     cfg.DiscoverSources,
		filter:      filter,
		fetcher:     fetcher,
	}
	if f.concurrency < 1 {
		f.concurrency = 1
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// crawlState is owned by one Discover call and only touched under mu.
type crawlState struct {
	mu          sync.Mutex
	origin      *url.URL
	known       map[string]int
	fetched     map[string]struct{}
	visited     map[string]struct{}
	pending     []string
	rateLimited []string
	canceled    int
	truncated   int
	resumed     int
	storeDown   bool
}

// Discover crawls from seed and calls visit for every fetched page. It stops
// when no URLs are pending, when the next layer would exceed the maximum depth,
// or when ctx is done. The summary is returned even when ctx expires.
func (f *Frontier) Discover(ctx context.Context, seed string, visit VisitFunc) (*Summary, error) {
	seedURL, err := url.Parse(strings.TrimSpace(seed))
	if err != nil || (seedURL.Scheme != "http" && seedURL.Scheme != "https") || seedURL.Host == "" {
		return nil, fmt.Errorf("%w: invalid seed %q", ErrSeedUnreachable, seed)
	}
	seedURL = util.Canonicalize(seedURL)

	st := &crawlState{
		origin:  seedURL,
		known:   make(map[string]int),
		fetched: make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
	f.claim(ctx, st, seedURL.String(), 0)

	summary := &Summary{}
	var seedOnce sync.Once

	layer := st.drain()
	for depth := 0; len(layer) > 0 && depth <= f.maxDepth; depth++ {
		if ctx.Err() != nil {
			break
		}
		log.Debug().Int("depth", depth).Int("urls", len(layer)).Msg("Crawling layer")
		summary.Depth = depth

		p := pool.New().WithMaxGoroutines(f.concurrency)
		for _, u := range layer {
			p.Go(func() {
				fr := f.visitOne(ctx, st, u, depth, visit)
				if depth == 0 && fr != nil {
					seedOnce.Do(func() { summary.Seed = fr })
				}
			})
		}
		p.Wait()

		if depth == 0 && f.sources && f.maxDepth > 0 && ctx.Err() == nil &&
			summary.Seed != nil && !summary.Seed.Kind.Unreachable() {
			for _, link := range DiscoverSources(ctx, f.fetcher, seedURL) {
				f.enqueue(ctx, st, link, 1)
			}
		}
		layer = st.drain()
	}

	st.mu.Lock()
	for u := range st.visited {
		summary.Visited = append(summary.Visited, u)
	}
	// Pending URLs never dispatched because ctx expired count as canceled.
	if ctx.Err() != nil {
		st.canceled += len(layer)
	}
	summary.Discovered = len(st.known)
	summary.RateLimited = append(summary.RateLimited, st.rateLimited...)
	summary.Canceled = st.canceled
	summary.Truncated = st.truncated
	summary.Resumed = st.resumed
	st.mu.Unlock()

	sort.Strings(summary.Visited)
	sort.Strings(summary.RateLimited)

	log.Info().
		Int("visited", len(summary.Visited)).
		Int("discovered", summary.Discovered).
		Int("depth", summary.Depth).
		Msg("Crawl finished")

	if summary.Seed != nil && summary.Seed.Kind.Unreachable() {
		return summary, fmt.Errorf("%w: %s (%s)", ErrSeedUnreachable, summary.Seed.Err, summary.Seed.Kind)
	}
	return summary, nil
}

func (f *Frontier) visitOne(ctx context.Context, st *crawlState, u string, depth int, visit VisitFunc) *models.FetchResult {
	if ctx.Err() != nil {
		st.mu.Lock()
		st.canceled++
		st.mu.Unlock()
		return nil
	}

	if !st.claimFetch(u) {
		return nil
	}
	fr, dup := f.fetch(ctx, st, u)

	st.mu.Lock()
	switch fr.Kind {
	case models.ErrRateLimited:
		st.rateLimited = append(st.rateLimited, u)
	case models.ErrCanceled:
		st.canceled++
	default:
		st.visited[u] = struct{}{}
		if final, err := util.CanonicalString(fr.FinalURL); err == nil {
			st.visited[final] = struct{}{}
		}
	}
	st.mu.Unlock()

	if dup {
		log.Debug().Str("url", u).Str("final_url", fr.FinalURL).Msg("Redirect target already visited")
		return fr
	}
	if visit != nil {
		visit(fr, depth)
	}

	if depth >= f.maxDepth || !fr.OK() || !fr.IsHTML() {
		return fr
	}
	for _, link := range ExtractLinks(fr) {
		f.enqueue(ctx, st, link, depth+1)
	}
	return fr
}

// fetch retrieves u, claiming every redirect target so a page reached both
// directly and through a redirect is fetched once. dup reports that the
// response landed on a page another task already fetched.
func (f *Frontier) fetch(ctx context.Context, st *crawlState, u string) (fr *models.FetchResult, dup bool) {
	if rf, ok := f.fetcher.(RedirectFollower); ok {
		return rf.FetchFollowing(ctx, u, st.claimFetch), false
	}
	fr = f.fetcher.Fetch(ctx, u)
	final, err := util.CanonicalString(fr.FinalURL)
	if err != nil || final == u {
		return fr, false
	}
	return fr, !st.claimFetch(final)
}

// claimFetch records that u is about to be requested. It fails when u was
// already requested, directly or as a redirect hop.
func (st *crawlState) claimFetch(u string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.fetched[u]; ok {
		return false
	}
	st.fetched[u] = struct{}{}
	return true
}

// enqueue claims link for the next layer when it is same-origin, not excluded
// and within the URL budget.
func (f *Frontier) enqueue(ctx context.Context, st *crawlState, link *url.URL, depth int) {
	if !util.SameOrigin(st.origin, link) || f.filter.Excluded(link) {
		return
	}
	f.claim(ctx, st, link.String(), depth)
}

func (f *Frontier) claim(ctx context.Context, st *crawlState, u string, depth int) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.known[u]; ok {
		return
	}
	if f.maxURLs > 0 && len(st.known) >= f.maxURLs {
		st.truncated++
		return
	}

	if f.store != nil && !st.storeDown {
		added, err := f.store.Claim(ctx, u)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("Visited store unavailable, continuing in memory only")
			st.storeDown = true
		case !added && depth > 0:
			st.known[u] = depth
			st.resumed++
			return
		}
	}

	st.known[u] = depth
	st.pending = append(st.pending, u)
}

func (st *crawlState) drain() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	layer := st.pending
	st.pending = nil
	sort.Strings(layer)
	return layer
}

// ExtractLinks returns the canonical form of every anchor target in an HTML
// response, resolved against the URL the body was served from.
func ExtractLinks(fr *models.FetchResult) []*url.URL {
	baseRaw := fr.FinalURL
	if baseRaw == "" {
		baseRaw = fr.URL
	}
	base, err := url.Parse(baseRaw)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fr.Body))
	if err != nil {
		log.Debug().Err(err).Str("url", baseRaw).Msg("Failed to parse HTML")
		return nil
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b := util.ResolveURL(base, href); b != nil {
			base = b
		}
	}

	seen := make(map[string]struct{})
	var links []*url.URL
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved := util.ResolveURL(base, href)
		if resolved == nil {
			return
		}
		c := util.Canonicalize(resolved)
		key := c.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, c)
	})
	return links
}
