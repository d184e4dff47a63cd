package similarity

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productTemplate = `<html><head><title>Shop</title></head><body>
<nav><a href="/">Home</a><a href="/cart">Cart</a><a href="/account">Account</a></nav>
<ul class="categories"><li>Lighting</li><li>Seating</li><li>Tables</li><li>Storage</li><li>Beds</li>
<li>Outdoor</li><li>Kitchen</li><li>Bath</li><li>Office</li><li>Kids</li></ul>
<div class="product"><h1>%s</h1><p>Price: %d</p><button>Add to cart</button></div>
<footer><p>Copyright Shop Inc.</p><p>Terms</p><p>Privacy</p></footer>
</body></html>`

func TestCosineSimilarity(t *testing.T) {
	a, err := NewDOMVector(strings.NewReader(fmt.Sprintf(productTemplate, "Lamp", 10)))
	require.NoError(t, err)
	b, err := NewDOMVector(strings.NewReader(fmt.Sprintf(productTemplate, "Lamp", 10)))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-9)

	var zero DOMVector
	assert.Zero(t, CosineSimilarity(a, zero))
}

func TestIndex(t *testing.T) {
	ix := NewIndex(0.9)

	lamp := fmt.Sprintf(productTemplate, "Lamp", 10)
	assert.Equal(t, Unique, ix.Check("http://example.test/p/1", lamp))
	assert.Equal(t, Identical, ix.Check("http://example.test/p/2", lamp))
	assert.Equal(t, Similar, ix.Check("http://example.test/p/3", fmt.Sprintf(productTemplate, "Chair", 25)))

	different := `<html><body><table><tr><td>a</td><td>b</td></tr></table><ul><li>x</li><li>y</li></ul></body></html>`
	assert.Equal(t, Unique, ix.Check("http://example.test/p/4", different))

	// Same template at another path depth is compared separately.
	assert.Equal(t, Unique, ix.Check("http://example.test/p/4/reviews", fmt.Sprintf(productTemplate, "Desk", 99)))
}

func TestIndex_ConcurrentDuplicates(t *testing.T) {
	ix := NewIndex(0.97)
	body := fmt.Sprintf(productTemplate, "Lamp", 10)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		unique int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ix.Check(fmt.Sprintf("http://example.test/p/%d", i), body) == Unique {
				mu.Lock()
				unique++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, unique)
}

func TestPathDepth(t *testing.T) {
	assert.Equal(t, 0, pathDepth("http://example.test/"))
	assert.Equal(t, 2, pathDepth("http://example.test/a/b/"))
	assert.Equal(t, 0, pathDepth("::bad"))
}
