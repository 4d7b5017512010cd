package usecase

import (
	"sync/atomic"

	"github.com/user/linkchecker-service/internal/entity"
)

// GridResourcesCache holds the rows shown in the UI. The whole list is swapped
// at once, so readers see either the old or the new list.
type GridResourcesCache struct {
	rows atomic.Pointer[[]entity.GridResource]
}

func NewGridResourcesCache() *GridResourcesCache {
	return &GridResourcesCache{}
}

// Get returns the cached rows and whether the cache is filled. Callers must not
// modify the returned slice.
func (c *GridResourcesCache) Get() ([]entity.GridResource, bool) {
	p := c.rows.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

// Set replaces the cached rows with a private copy of rows.
func (c *GridResourcesCache) Set(rows []entity.GridResource) {
	cp := append([]entity.GridResource(nil), rows...)
	c.rows.Store(&cp)
}

func (c *GridResourcesCache) Clear() {
	c.rows.Store(nil)
}
