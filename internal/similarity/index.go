package similarity

import (
	"net/url"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Verdict explains why a page was matched.
type Verdict string

const (
	Unique    Verdict = ""
	Identical Verdict = "identical"
	Similar   Verdict = "similar"
)

// Index remembers the pages it has accepted. Pages are only compared with
// pages whose URL path has the same number of segments.
type Index struct {
	threshold float64

	mu      sync.Mutex
	hashes  map[uint64]struct{}
	vectors map[int][]DOMVector
}

// NewIndex returns an index that treats cosine similarity >= threshold as a match.
func NewIndex(threshold float64) *Index {
	return &Index{
		threshold: threshold,
		hashes:    make(map[uint64]struct{}),
		vectors:   make(map[int][]DOMVector),
	}
}

// Check reports whether body matches a page already in the index. Unique
// pages are added, so of two concurrent near-identical pages exactly one is
// reported Unique.
func (ix *Index) Check(pageURL, body string) Verdict {
	sum := xxhash.Sum64String(body)
	depth := pathDepth(pageURL)
	vec, err := NewDOMVector(strings.NewReader(body))

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.hashes[sum]; ok {
		return Identical
	}
	if err == nil {
		for _, seen := range ix.vectors[depth] {
			if CosineSimilarity(vec, seen) >= ix.threshold {
				return Similar
			}
		}
		ix.vectors[depth] = append(ix.vectors[depth], vec)
	}
	ix.hashes[sum] = struct{}{}
	return Unique
}

func pathDepth(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	n := 0
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			n++
		}
	}
	return n
}
