package pdf

import (
	"context"
	"fmt"
	"io"
	"time"

	"crimewatch/internal/models"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheItem struct {
	data      []byte
	expiresAt time.Time
}

// Cache memoises rendered documents. Entries are keyed by report id, last
// update and layout, so an edit never serves a stale document. Documents whose
// media blocks degraded to error lines are not cached.
type Cache struct {
	renderer *Renderer
	lru      *lru.Cache[string, cacheItem]
	ttl      time.Duration
}

// NewCache wraps r with an LRU of size entries that expire after ttl.
// Presigned media links inside the document expire too, so ttl should stay well below storage.PresignExpiry.
func NewCache(r *Renderer, size int, ttl time.Duration) (*Cache, error) {
	l, err := lru.New[string, cacheItem](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create pdf cache: %w", err)
	}
	return &Cache{renderer: r, lru: l, ttl: ttl}, nil
}

func cacheKey(report *models.Report, layout Layout) string {
	return fmt.Sprintf("report:%d:%d:%s", report.ID, report.UpdatedAt.UnixNano(), layout.Name)
}

func (c *Cache) Bytes(ctx context.Context, report *models.Report, layout Layout) ([]byte, error) {
	key := cacheKey(report, layout)
	if item, ok := c.lru.Get(key); ok {
		if time.Now().Before(item.expiresAt) {
			return item.data, nil
		}
		c.lru.Remove(key)
	}

	data, degraded, err := c.renderer.bytes(ctx, report, layout)
	if err != nil {
		return nil, err
	}
	if !degraded {
		c.lru.Add(key, cacheItem{data: data, expiresAt: time.Now().Add(c.ttl)})
	}
	return data, nil
}

func (c *Cache) Render(ctx context.Context, w io.Writer, report *models.Report, layout Layout) error {
	data, err := c.Bytes(ctx, report, layout)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Len reports how many documents are cached.
func (c *Cache) Len() int {
	return c.lru.Len()
}
