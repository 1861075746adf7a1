package analysis

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jacokyle01/game-review/src/models"
)

const DefaultCacheSize = 4096

// Cache keeps final evaluations by position key, so transpositions and
// revisited positions are not searched twice. It is safe for concurrent
// use.
type Cache struct {
	entries *lru.Cache[string, models.Evaluation]
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, models.Evaluation](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

func (c *Cache) Get(key string) (models.Evaluation, bool) {
	if c == nil {
		return models.Evaluation{}, false
	}
	return c.entries.Get(key)
}

// Add stores ev under key. Partial evaluations are ignored.
func (c *Cache) Add(key string, ev models.Evaluation) {
	if c == nil || !ev.Final {
		return
	}
	c.entries.Add(key, ev)
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
