package crawler

import (
	"bufio"
	"context"
	"encoding/xml"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"webvulnscan/internal/util"
)

// maxSitemapNesting bounds how many sitemap index levels are followed.
const maxSitemapNesting = 2

type sitemapURLSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// DiscoverSources returns the same-origin URLs named by robots.txt and the
// sitemaps it lists, falling back to /sitemap.xml. Every request goes through
// fetcher, so the rate limit and proxies apply.
func DiscoverSources(ctx context.Context, fetcher Fetcher, origin *url.URL) []*url.URL {
	found := make(map[string]*url.URL)
	add := func(raw string) {
		u := util.ResolveURL(origin, raw)
		if u == nil || !util.SameOrigin(origin, u) {
			return
		}
		u = util.Canonicalize(u)
		found[u.String()] = u
	}

	var sitemaps []string
	robots := fetcher.Fetch(ctx, origin.ResolveReference(&url.URL{Path: "/robots.txt"}).String())
	if robots.OK() && robots.HasBody {
		paths, listed := ParseRobots(robots.Body)
		for _, p := range paths {
			add(p)
		}
		sitemaps = listed
	}
	if len(sitemaps) == 0 {
		sitemaps = []string{origin.ResolveReference(&url.URL{Path: "/sitemap.xml"}).String()}
	}

	seen := make(map[string]bool)
	for _, sm := range sitemaps {
		for _, loc := range fetchSitemap(ctx, fetcher, sm, maxSitemapNesting, seen) {
			add(loc)
		}
	}

	out := make([]*url.URL, 0, len(found))
	for _, u := range found {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	log.Debug().Int("count", len(out)).Str("origin", origin.String()).Msg("Extracted URLs from robots.txt and sitemaps")
	return out
}

// ParseRobots returns the literal paths of Allow/Disallow rules and the
// Sitemap URLs in a robots.txt body. Wildcard rules and "/" are skipped.
func ParseRobots(body string) (paths, sitemaps []string) {
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "allow", "disallow":
			if value == "" || value == "/" || strings.ContainsAny(value, "*$") {
				continue
			}
			paths = append(paths, value)
		case "sitemap":
			if value != "" {
				sitemaps = append(sitemaps, value)
			}
		}
	}
	return paths, sitemaps
}

// fetchSitemap returns the <loc> entries of a urlset, following index files
// up to nesting levels deep.
func fetchSitemap(ctx context.Context, fetcher Fetcher, sitemapURL string, nesting int, seen map[string]bool) []string {
	if seen[sitemapURL] || ctx.Err() != nil {
		return nil
	}
	seen[sitemapURL] = true

	fr := fetcher.Fetch(ctx, sitemapURL)
	if !fr.OK() || !fr.HasBody {
		log.Debug().Str("url", sitemapURL).Str("kind", string(fr.Kind)).Msg("Sitemap unavailable")
		return nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal([]byte(fr.Body), &index); err == nil && len(index.Sitemaps) > 0 {
		if nesting <= 0 {
			return nil
		}
		var locs []string
		for _, sm := range index.Sitemaps {
			locs = append(locs, fetchSitemap(ctx, fetcher, strings.TrimSpace(sm.Loc), nesting-1, seen)...)
		}
		return locs
	}

	var set sitemapURLSet
	if err := xml.Unmarshal([]byte(fr.Body), &set); err != nil {
		log.Debug().Err(err).Str("url", sitemapURL).Msg("Failed to parse sitemap")
		return nil
	}
	locs := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		locs = append(locs, strings.TrimSpace(u.Loc))
	}
	return locs
}
