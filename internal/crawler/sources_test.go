package crawler

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textPage(ct, body string) page {
	return page{status: http.StatusOK, ct: ct, body: body}
}

func TestParseRobots(t *testing.T) {
	paths, sitemaps := ParseRobots(`
# comment
User-agent: *
Disallow: /admin   # staff only
disallow: /*.php$
Allow: /
Allow: /public/
Disallow:
Sitemap: http://example.test/sitemap_index.xml
`)
	assert.Equal(t, []string{"/admin", "/public/"}, paths)
	assert.Equal(t, []string{"http://example.test/sitemap_index.xml"}, sitemaps)
}

func TestDiscover_WithSources(t *testing.T) {
	fetcher := newFakeFetcher(map[string]page{
		"http://example.test/": htmlPage("/a"),
		"http://example.test/robots.txt": textPage("text/plain",
			"User-agent: *\nDisallow: /admin\nSitemap: http://example.test/sitemap_index.xml\n"),
		"http://example.test/sitemap_index.xml": textPage("application/xml",
			`<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"><sitemap><loc>http://example.test/sm1.xml</loc></sitemap></sitemapindex>`),
		"http://example.test/sm1.xml": textPage("application/xml",
			`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"><url><loc>http://example.test/products</loc></url><url><loc>http://other.test/x</loc></url></urlset>`),
		"http://example.test/a":        htmlPage(),
		"http://example.test/admin":    htmlPage(),
		"http://example.test/products": htmlPage("/deeper"),
	})
	cfg := crawlConfig(1, 100)
	cfg.DiscoverSources = true
	f, err := NewFrontier(cfg, fetcher)
	require.NoError(t, err)

	summary, err := f.Discover(context.Background(), "http://example.test/", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://example.test/",
		"http://example.test/a",
		"http://example.test/admin",
		"http://example.test/products",
	}, summary.Visited)
	assert.NotContains(t, fetcher.fetched(), "http://example.test/deeper")
	assert.NotContains(t, fetcher.fetched(), "http://other.test/x")
}

func TestDiscover_SourcesOffByDefault(t *testing.T) {
	fetcher := newFakeFetcher(map[string]page{
		"http://example.test/": htmlPage(),
	})
	f, err := NewFrontier(crawlConfig(1, 100), fetcher)
	require.NoError(t, err)

	_, err = f.Discover(context.Background(), "http://example.test/", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.test/"}, fetcher.fetched())
}

func TestDiscoverSources_FallsBackToSitemapXML(t *testing.T) {
	fetcher := newFakeFetcher(map[string]page{
		"http://example.test/sitemap.xml": textPage("text/xml",
			`<urlset><url><loc>/relative</loc></url><url><loc>http://EXAMPLE.test:80/b#x</loc></url></urlset>`),
	})
	origin, err := url.Parse("http://example.test/")
	require.NoError(t, err)

	var got []string
	for _, u := range DiscoverSources(context.Background(), fetcher, origin) {
		got = append(got, u.String())
	}
	assert.Equal(t, []string{"http://example.test/b", "http://example.test/relative"}, got)
	assert.Equal(t, []string{"http://example.test/robots.txt", "http://example.test/sitemap.xml"}, fetcher.fetched())
}
