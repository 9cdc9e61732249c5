package cache

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	visibilitydomain "github.com/shi0417/kongfuworld-champion/internal/visibility/domain"
)

const defaultVisibilityTTL = 45 * time.Second

// VisibilityCache stores hot-path visibility results per novel and reader.
type VisibilityCache interface {
	Get(novelID snowflake.ID, readerID *snowflake.ID) (visibilitydomain.Result, bool)
	Set(novelID snowflake.ID, readerID *snowflake.ID, result visibilitydomain.Result)
	Invalidate(novelID snowflake.ID, readerID *snowflake.ID)
}

type visibilityCache struct {
	results Cache[string, visibilitydomain.Result]
	ttl     time.Duration
}

// NewVisibilityCache returns an in-memory cache tuned for chapter listing.
func NewVisibilityCache() VisibilityCache {
	return &visibilityCache{
		results: NewTTLCache[string, visibilitydomain.Result](),
		ttl:     defaultVisibilityTTL,
	}
}

func (c *visibilityCache) Get(novelID snowflake.ID, readerID *snowflake.ID) (visibilitydomain.Result, bool) {
	return c.results.Get(visibilityKey(novelID, readerID))
}

func (c *visibilityCache) Set(novelID snowflake.ID, readerID *snowflake.ID, result visibilitydomain.Result) {
	c.results.Set(visibilityKey(novelID, readerID), result, c.ttl)
}

func (c *visibilityCache) Invalidate(novelID snowflake.ID, readerID *snowflake.ID) {
	c.results.Delete(visibilityKey(novelID, readerID))
}

func visibilityKey(novelID snowflake.ID, readerID *snowflake.ID) string {
	reader := "anonymous"
	if readerID != nil {
		reader = strconv.FormatInt(int64(*readerID), 10)
	}
	return strings.Join([]string{novelID.String(), reader}, "|")
}
