// Package checks runs passive vulnerability checks against fetched responses.
package checks

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"

	"webvulnscan/internal/config"
	"webvulnscan/internal/models"
)

// Check inspects one response. Checks never touch the network.
type Check interface {
	// Name identifies the check in findings and module summaries.
	Name() string
	// Applies reports whether the check should run for fr, e.g. HTML-only checks
	// return false for JSON responses.
	Applies(fr *models.FetchResult) bool
	// Run returns the findings for fr.
	Run(fr *models.FetchResult) ([]models.Finding, error)
}

// CheckError records a check that failed or panicked on one page.
type CheckError struct {
	Check string
	URL   string
	Err   error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("check %s on %s: %v", e.Check, e.URL, e.Err)
}

func (e *CheckError) Unwrap() error { return e.Err }

// Pipeline runs an ordered list of checks and keeps per-check statistics.
type Pipeline struct {
	checks []Check
	now    func() time.Time

	mu       sync.Mutex
	executed int
	modules  map[string]models.ModuleSummary
}

// NewPipeline returns the built-in checks enabled in cfg followed by extra.
func NewPipeline(cfg config.ChecksConfig, extra ...Check) *Pipeline {
	var list []Check
	if cfg.SecurityHeaders {
		list = append(list, SecurityHeaders{})
	}
	if cfg.CSRF {
		list = append(list, CSRF{})
	}
	if cfg.ReflectedParams {
		list = append(list, ReflectedParams{})
	}
	if cfg.InfoDisclosure {
		list = append(list, InfoDisclosure{})
	}
	if cfg.Fingerprint {
		list = append(list, Fingerprint{})
	}
	list = append(list, extra...)

	modules := make(map[string]models.ModuleSummary, len(list))
	for _, c := range list {
		modules[c.Name()] = models.ModuleSummary{}
	}
	return &Pipeline{checks: list, now: time.Now, modules: modules}
}

// Names lists the checks in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.checks))
	for i, c := range p.checks {
		names[i] = c.Name()
	}
	return names
}

// Run executes every applicable check against fr. A check that returns an
// error or panics contributes no findings; the remaining checks still run.
func (p *Pipeline) Run(fr *models.FetchResult) []models.Finding {
	var out []models.Finding
	for _, c := range p.checks {
		if !c.Applies(fr) {
			continue
		}
		found, err := p.runOne(c, fr)

		p.mu.Lock()
		p.executed++
		m := p.modules[c.Name()]
		m.Executions++
		if err != nil {
			m.Errors++
		} else {
			m.Findings += len(found)
		}
		p.modules[c.Name()] = m
		p.mu.Unlock()

		if err != nil {
			log.Warn().Err(err).Str("check", c.Name()).Str("url", fr.URL).Msg("Check failed")
			continue
		}
		out = append(out, found...)
	}
	return out
}

func (p *Pipeline) runOne(c Check, fr *models.FetchResult) (found []models.Finding, err error) {
	var pc panics.Catcher
	pc.Try(func() {
		found, err = c.Run(fr)
	})
	if r := pc.Recovered(); r != nil {
		return nil, &CheckError{Check: c.Name(), URL: fr.URL, Err: fmt.Errorf("panic: %v", r.Value)}
	}
	if err != nil {
		return nil, &CheckError{Check: c.Name(), URL: fr.URL, Err: err}
	}

	now := p.now()
	for i := range found {
		f := &found[i]
		if f.URL == "" {
			f.URL = fr.URL
		}
		if f.Module == "" {
			f.Module = c.Name()
		}
		if f.Timestamp.IsZero() {
			f.Timestamp = now
		}
		f.Confidence = models.ClampConfidence(f.Confidence)
	}
	return found, nil
}

// Executed returns how many check executions have completed.
func (p *Pipeline) Executed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.executed
}

// Modules returns a copy of the per-check statistics.
func (p *Pipeline) Modules() map[string]models.ModuleSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]models.ModuleSummary, len(p.modules))
	for k, v := range p.modules {
		out[k] = v
	}
	return out
}
