// Package core runs one scan from configuration to a frozen ScanResult.
package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"webvulnscan/internal/auth"
	"webvulnscan/internal/checks"
	"webvulnscan/internal/config"
	"webvulnscan/internal/crawler"
	"webvulnscan/internal/metrics"
	"webvulnscan/internal/models"
	"webvulnscan/internal/proxy"
	"webvulnscan/internal/ratelimit"
	"webvulnscan/internal/redis"
	"webvulnscan/internal/requester"
	"webvulnscan/internal/similarity"
)

// ErrSeedUnreachable is returned when the target itself cannot be contacted.
var ErrSeedUnreachable = crawler.ErrSeedUnreachable

// ErrAlreadyStarted is returned by Run on a session that has left Idle.
var ErrAlreadyStarted = errors.New("scan session already started")

const (
	moduleBruteForce = "brute_force"
	moduleRecon      = "recon"
)

// Session is one scan. It moves Idle -> Running -> {Completed, Failed, TimedOut}
// and its result is frozen on the final transition.
type Session struct {
	id  string
	cfg config.ScanConfig

	recon       ReconProvider
	bruteForce  BruteForceProvider
	extraChecks []checks.Check
	metrics     *metrics.Metrics
	store       crawler.VisitedStore

	log zerolog.Logger
	now func() time.Time

	mu       sync.Mutex
	state    models.ScanState
	findings map[models.FindingKey]models.Finding
	stats    models.ScanStats
	modules  map[string]models.ModuleSummary
	report   *models.ReconReport
	result   *models.ScanResult
}

// NewSession prepares a scan of cfg. The configuration is copied; nothing is
// validated or contacted until Run.
func NewSession(cfg *config.ScanConfig, opts ...Option) *Session {
	id := uuid.NewString()
	s := &Session{
		id:       id,
		cfg:      *cfg,
		log:      log.With().Str("scan_id", id).Logger(),
		now:      time.Now,
		state:    models.StateIdle,
		findings: make(map[models.FindingKey]models.Finding),
		stats:    models.ScanStats{Errors: make(map[models.ErrorKind]int)},
		modules:  make(map[string]models.ModuleSummary),
	}
	s.cfg.Proxies = append([]models.Proxy(nil), cfg.Proxies...)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() models.ScanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the frozen result, or nil while the scan has not finished.
func (s *Session) Result() *models.ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Run executes the scan. It returns a result for every terminal state; the
// error is non-nil only when the scan Failed.
func (s *Session) Run(ctx context.Context) (*models.ScanResult, error) {
	s.mu.Lock()
	if s.state != models.StateIdle {
		s.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	s.state = models.StateRunning
	s.mu.Unlock()

	started := s.now()
	s.log.Info().Str("target", s.cfg.Target).Msg("Scan starting...")

	if err := s.cfg.Validate(); err != nil {
		s.log.Error().Err(err).Msg("Invalid configuration")
		return s.finish(models.StateFailed, started, nil, nil, err)
	}

	s.verifyProxies(ctx)
	rotator := proxy.NewRotator(s.cfg.Proxies)

	scanCtx, cancel := context.WithTimeout(ctx, s.cfg.ScanTimeout)
	defer cancel()

	authProvider, err := s.authenticate(scanCtx, rotator)
	if err != nil {
		return s.finish(models.StateFailed, started, nil, nil, err)
	}

	var limiterOpts []ratelimit.Option
	if a := s.cfg.AdaptiveRate; a.Enabled {
		limiterOpts = append(limiterOpts, ratelimit.WithAdaptive(a.Threshold, a.Window, a.Factor))
	}
	limiter := ratelimit.New(s.cfg.RequestsPerSecond, s.cfg.Burst, limiterOpts...)

	fetcher := requester.NewFetcher(&s.cfg, limiter, rotator, authProvider, requester.WithObserver(s.observeFetch))
	defer fetcher.Close()

	var frontierOpts []crawler.Option
	store, closeStore := s.visitedStore(scanCtx)
	defer closeStore()
	if store != nil {
		frontierOpts = append(frontierOpts, crawler.WithStore(store))
	}
	frontier, err := crawler.NewFrontier(&s.cfg, fetcher, frontierOpts...)
	if err != nil {
		return s.finish(models.StateFailed, started, nil, nil, err)
	}

	pipeline := checks.NewPipeline(s.cfg.Checks, s.extraChecks...)
	var index *similarity.Index
	if s.cfg.SkipSimilarPages {
		index = similarity.NewIndex(s.cfg.SimilarityThreshold)
	}

	var wg conc.WaitGroup
	if s.cfg.Recon.Enabled {
		wg.Go(func() { s.runRecon(scanCtx) })
	}
	if s.cfg.BruteForce.Enabled {
		wg.Go(func() { s.runBruteForce(scanCtx) })
	}

	summary, crawlErr := frontier.Discover(scanCtx, s.cfg.Target, func(fr *models.FetchResult, _ int) {
		s.inspect(fr, pipeline, index)
	})
	wg.Wait()

	state := models.StateCompleted
	switch {
	case crawlErr != nil:
		state = models.StateFailed
	case scanCtx.Err() != nil:
		state = models.StateTimedOut
	}
	return s.finish(state, started, summary, pipeline, crawlErr)
}

// inspect runs the pipeline on one successful page unless an equivalent page
// was already checked.
func (s *Session) inspect(fr *models.FetchResult, pipeline *checks.Pipeline, index *similarity.Index) {
	if !fr.OK() {
		return
	}
	if index != nil && fr.IsHTML() {
		if verdict := index.Check(fr.FinalURL, fr.Body); verdict != similarity.Unique {
			s.log.Debug().Str("url", fr.FinalURL).Str("verdict", string(verdict)).Msg("Skipping similar page")
			s.metrics.ObserveSkippedPage()
			s.mu.Lock()
			s.stats.SimilarPagesSkipped++
			s.mu.Unlock()
			return
		}
	}
	s.accept(pipeline.Run(fr))
}

// accept merges findings into the accumulator. Findings below min_confidence
// are dropped, and the first finding seen for a (type, URL, severity) wins.
func (s *Session) accept(found []models.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	for _, f := range found {
		f.Confidence = models.ClampConfidence(f.Confidence)
		if f.Confidence < s.cfg.MinConfidence {
			s.stats.FilteredFindings++
			continue
		}
		key := f.Key()
		if _, dup := s.findings[key]; dup {
			s.stats.DuplicateFindings++
			continue
		}
		s.findings[key] = f
		s.metrics.ObserveFinding(f)
	}
}

func (s *Session) observeFetch(fr *models.FetchResult) {
	s.metrics.ObserveFetch(fr)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Requests++
	if fr.Kind == models.ErrRateLimited {
		s.stats.RateLimited++
	}
	if fr.Kind != models.ErrNone {
		s.stats.Errors[fr.Kind]++
	}
}

// authenticate logs in before the crawl. Failure is fatal only when auth.required is set.
func (s *Session) authenticate(ctx context.Context, rotator *proxy.Rotator) (*auth.Provider, error) {
	if !s.cfg.Auth.Enabled() {
		return nil, nil
	}
	transport, err := proxy.NewTransport(rotator.Next(), proxy.TransportOptions{
		DialTimeout:        s.cfg.RequestTimeout,
		InsecureSkipVerify: !s.cfg.VerifyTLS,
	})
	if err != nil {
		return nil, err
	}
	client := &http.Client{Transport: transport, Timeout: s.cfg.RequestTimeout}

	provider, err := auth.New(s.cfg.Auth, client)
	if err == nil {
		_, err = provider.Authenticate(ctx)
	}
	if err == nil {
		return provider, nil
	}
	if s.cfg.Auth.Required {
		s.log.Error().Err(err).Msg("Authentication required but failed")
		return nil, fmt.Errorf("authentication: %w", err)
	}
	s.log.Warn().Err(err).Msg("Authentication failed, continuing unauthenticated")
	return nil, nil
}

// verifyProxies probes the configured proxies when proxy_verify.on_start is set.
// It runs under the caller's context, outside the scan timeout.
func (s *Session) verifyProxies(ctx context.Context) {
	if len(s.cfg.Proxies) == 0 || !s.cfg.ProxyVerify.OnStart {
		return
	}
	rotator := proxy.NewRotator(s.cfg.Proxies)
	alive := rotator.VerifyAll(ctx, s.cfg.ProxyVerify.Endpoint, s.cfg.ProxyVerify.Timeout)
	s.log.Info().Int("alive", alive).Int("configured", len(s.cfg.Proxies)).Msg("Proxy verification complete")
	s.cfg.Proxies = rotator.Proxies()
}

// visitedStore returns the injected store, or the configured Redis set. Redis
// problems leave the crawl in memory only. The returned func releases the connection.
func (s *Session) visitedStore(ctx context.Context) (crawler.VisitedStore, func()) {
	noop := func() {}
	if s.store != nil {
		return s.store, noop
	}
	if !s.cfg.Redis.Enabled {
		return nil, noop
	}
	client, err := redis.NewClient(ctx, s.cfg.Redis.URL)
	if err != nil {
		s.log.Warn().Err(err).Msg("Redis unavailable, tracking visited URLs in memory only")
		return nil, noop
	}
	set := redis.NewVisitedSet(client, s.cfg.Redis.Key)
	if !s.cfg.Redis.Resume {
		if err := set.Reset(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Failed to clear visited set")
		}
	}
	return set, func() {
		if err := client.Close(); err != nil {
			s.log.Debug().Err(err).Msg("Closing redis client")
		}
	}
}

func (s *Session) runRecon(ctx context.Context) {
	if s.recon == nil {
		s.log.Warn().Msg("Recon enabled but no provider configured")
		return
	}
	host := targetHost(s.cfg.Recon.Host, s.cfg.Target)
	report, err := s.recon.Recon(ctx, host, s.cfg.Recon.Ports)

	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.modules[moduleRecon]
	m.Executions++
	if err != nil {
		m.Errors++
		s.log.Warn().Err(err).Str("host", host).Msg("Recon failed")
	}
	s.modules[moduleRecon] = m
	if report != nil {
		s.report = report
	}
}

func (s *Session) runBruteForce(ctx context.Context) {
	if s.bruteForce == nil {
		s.log.Warn().Msg("Brute force enabled but no provider configured")
		return
	}
	cfg := s.cfg.BruteForce
	host := targetHost(cfg.Host, s.cfg.Target)
	found, err := s.bruteForce.BruteForce(ctx, host, cfg.Port, cfg.Username, cfg.Passwords)
	if err != nil {
		s.log.Warn().Err(err).Str("host", host).Msg("Brute force failed")
	}

	now := s.now()
	for i := range found {
		f := &found[i]
		if f.Type == "" {
			f.Type = models.TypeWeakCredentials
		}
		if f.URL == "" {
			f.URL = bruteForceURL(cfg, host)
		}
		if f.Module == "" {
			f.Module = moduleBruteForce
		}
		if f.Timestamp.IsZero() {
			f.Timestamp = now
		}
	}
	s.accept(found)

	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.modules[moduleBruteForce]
	m.Executions++
	m.Findings += len(found)
	if err != nil {
		m.Errors++
	}
	s.modules[moduleBruteForce] = m
}

// finish performs the terminal transition and freezes the result.
func (s *Session) finish(state models.ScanState, started time.Time, summary *crawler.Summary, pipeline *checks.Pipeline, cause error) (*models.ScanResult, error) {
	finished := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	res := &models.ScanResult{
		ID:          s.id,
		Target:      s.cfg.Target,
		State:       state,
		Findings:    sortedFindings(s.findings),
		VisitedURLs: []string{},
		StartedAt:   started,
		FinishedAt:  finished,
		Duration:    finished.Sub(started),
		Modules:     make(map[string]models.ModuleSummary),
		Stats:       s.stats,
		Recon:       s.report,
	}
	res.Stats.Errors = make(map[models.ErrorKind]int, len(s.stats.Errors))
	for k, v := range s.stats.Errors {
		res.Stats.Errors[k] = v
	}
	if summary != nil {
		res.VisitedURLs = append(res.VisitedURLs, summary.Visited...)
		res.URLsVisited = len(summary.Visited)
	}
	if pipeline != nil {
		res.ChecksExecuted = pipeline.Executed()
		for name, m := range pipeline.Modules() {
			res.Modules[name] = m
		}
	}
	for name, m := range s.modules {
		res.Modules[name] = m
	}
	if cause != nil {
		res.Error = cause.Error()
	}

	s.state = state
	s.result = res

	ev := s.log.Info()
	if state == models.StateFailed {
		ev = s.log.Error().Err(cause)
	}
	ev.Str("state", string(state)).
		Int("findings", len(res.Findings)).
		Int("visited", res.URLsVisited).
		Dur("duration", res.Duration).
		Msg("Scan finished")

	if state == models.StateFailed {
		return res, cause
	}
	return res, nil
}

// sortedFindings orders by severity (highest first), then URL, then type.
func sortedFindings(m map[models.FindingKey]models.Finding) []models.Finding {
	out := make([]models.Finding, 0, len(m))
	for _, f := range m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.URL != b.URL {
			return a.URL < b.URL
		}
		return a.Type < b.Type
	})
	return out
}
