package query

import (
	"fmt"
	"strconv"

	"github.com/plgd-dev/nmos-registry/registry/resource"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Paging selects a page of resources created after Since.
type Paging struct {
	Since uint64
	Limit int
}

// Page describes the returned window. Until is the cursor of the next page.
type Page struct {
	Since uint64
	Until uint64
	Limit int
}

// ParsePaging reads paging.since and paging.limit. A limit above MaxLimit is lowered.
func ParsePaging(params map[string]string) (Paging, error) {
	p := Paging{Limit: DefaultLimit}
	if v, ok := params[PagingSinceParam]; ok {
		since, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Paging{}, fmt.Errorf("%w: %v('%v')", resource.ErrInvalidBody, PagingSinceParam, v)
		}
		p.Since = since
	}
	if v, ok := params[PagingLimitParam]; ok {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return Paging{}, fmt.Errorf("%w: %v('%v')", resource.ErrInvalidBody, PagingLimitParam, v)
		}
		p.Limit = limit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p, nil
}

// Apply returns at most Limit resources created after Since. The input must be
// ordered by creation as returned by a store snapshot.
func (p Paging) Apply(matches []*resource.Resource) ([]*resource.Resource, Page) {
	page := Page{Since: p.Since, Until: p.Since, Limit: p.Limit}
	out := make([]*resource.Resource, 0, p.Limit)
	for _, r := range matches {
		if r.CreatedAt <= p.Since {
			continue
		}
		if len(out) == p.Limit {
			break
		}
		out = append(out, r)
		page.Until = r.CreatedAt
	}
	return out, page
}
