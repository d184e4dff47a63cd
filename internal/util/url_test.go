package util

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestResolveURL(t *testing.T) {
	base := mustParse(t, "http://example.test/dir/page.html")

	tests := []struct {
		href string
		want string
	}{
		{"/a", "http://example.test/a"},
		{"b", "http://example.test/dir/b"},
		{"../c?x=1", "http://example.test/c?x=1"},
		{"//cdn.test/lib.js", "http://cdn.test/lib.js"},
		{"  https://other.test/  ", "https://other.test/"},
		{"", ""},
		{"#top", ""},
		{"mailto:a@example.test", ""},
		{"javascript:alert(1)", ""},
		{"ftp://example.test/file", ""},
		{"http://[::1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			got := ResolveURL(base, tt.href)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HTTP://Example.TEST:80/a#frag", "http://example.test/a"},
		{"https://example.test:443", "https://example.test/"},
		{"https://example.test:8443/x?q=1", "https://example.test:8443/x?q=1"},
		{"http://user:pw@example.test/", "http://example.test/"},
		{"http://[::1]:80/", "http://[::1]/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(mustParse(t, tt.in)).String())
		})
	}
	assert.Nil(t, Canonicalize(nil))
}

func TestCanonicalString(t *testing.T) {
	got, err := CanonicalString("http://example.test:80/#x")
	require.NoError(t, err)
	assert.Equal(t, "http://example.test/", got)

	_, err = CanonicalString("ftp://example.test/")
	assert.Error(t, err)
	_, err = CanonicalString("/relative")
	assert.Error(t, err)
}

func TestSameOrigin(t *testing.T) {
	seed := mustParse(t, "http://example.test/")

	assert.True(t, SameOrigin(seed, mustParse(t, "http://EXAMPLE.test:80/a")))
	assert.False(t, SameOrigin(seed, mustParse(t, "https://example.test/a")))
	assert.False(t, SameOrigin(seed, mustParse(t, "http://example.test:8080/a")))
	assert.False(t, SameOrigin(seed, mustParse(t, "http://sub.example.test/a")))
	assert.False(t, SameOrigin(seed, nil))
}

func TestPathFilter(t *testing.T) {
	f, err := NewPathFilter([]string{"^/logout", `\.pdf$`})
	require.NoError(t, err)

	assert.True(t, f.Excluded(mustParse(t, "http://example.test/logout?next=/")))
	assert.True(t, f.Excluded(mustParse(t, "http://example.test/docs/a.pdf")))
	assert.False(t, f.Excluded(mustParse(t, "http://example.test/account/logout")))
	assert.False(t, f.Excluded(mustParse(t, "http://example.test/")))

	var none *PathFilter
	assert.False(t, none.Excluded(mustParse(t, "http://example.test/logout")))

	_, err = NewPathFilter([]string{"("})
	assert.Error(t, err)
}

