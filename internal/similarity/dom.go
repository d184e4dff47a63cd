// Package similarity detects pages that are exact or near copies of pages
// already seen, so templated pages are not checked over and over.
package similarity

import (
	"io"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/net/html"
)

const (
	VectorDimensions = 64
	// DepthWeight scales a feature by the depth of its node.
	DepthWeight = 10
)

// DOMVector is the hashed structure-and-text signature of one HTML page.
type DOMVector [VectorDimensions]int

// NewDOMVector creates a feature vector from an HTML document. Element tags and
// text nodes are hashed into a dimension and weighted by their depth.
func NewDOMVector(body io.Reader) (DOMVector, error) {
	var vector DOMVector
	doc, err := html.Parse(body)
	if err != nil {
		return vector, err
	}

	var traverse func(*html.Node, int)
	traverse = func(n *html.Node, depth int) {
		var feature string
		switch n.Type {
		case html.ElementNode:
			feature = "<" + n.Data + ">"
		case html.TextNode:
			feature = strings.TrimSpace(n.Data)
		}
		if feature != "" {
			vector[xxhash.Sum64String(feature)%VectorDimensions] += depth * DepthWeight
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c, depth+1)
		}
	}

	traverse(doc, 1)
	return vector, nil
}

// CosineSimilarity returns 1 for vectors pointing the same way and 0 when
// either vector is empty.
func CosineSimilarity(a, b DOMVector) float64 {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / math.Sqrt(normA*normB)
}
