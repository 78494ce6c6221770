package query

import (
	"fmt"
	"strconv"
	"strings"

	pkgStrings "github.com/plgd-dev/nmos-registry/pkg/strings"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/tidwall/gjson"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	// FlagPrefix marks parameters which control the query instead of constraining attributes.
	FlagPrefix       = "query."
	PagingPrefix     = "paging."
	IDsOnlyFlag      = FlagPrefix + "ids_only"
	PagingSinceParam = PagingPrefix + "since"
	PagingLimitParam = PagingPrefix + "limit"
)

// Constraint requires the attribute at Path to match Value.
type Constraint struct {
	// Path is a dotted attribute path, e.g. "caps.media_types".
	Path  string
	Value string
}

// Filter selects resources of one type by attribute constraints.
type Filter struct {
	Type        resource.Type
	Constraints []Constraint
	// IDsOnly strips bodies from events down to the id.
	IDsOnly bool
}

func isFlag(key string) bool {
	return strings.HasPrefix(key, FlagPrefix) || strings.HasPrefix(key, PagingPrefix)
}

// NewFilter parses the resource path and the parameters of a query or subscription.
func NewFilter(resourcePath string, params map[string]string) (*Filter, error) {
	t, err := resource.TypeFromPath(resourcePath)
	if err != nil {
		return nil, err
	}
	f := Filter{Type: t}
	keys := maps.Keys(params)
	slices.Sort(keys)
	for _, k := range keys {
		v := params[k]
		if isFlag(k) {
			if k == IDsOnlyFlag {
				f.IDsOnly, err = strconv.ParseBool(v)
				if err != nil {
					return nil, fmt.Errorf("%w: %v('%v')", resource.ErrInvalidBody, k, v)
				}
			}
			continue
		}
		if k == "" {
			return nil, fmt.Errorf("%w: empty attribute path", resource.ErrInvalidBody)
		}
		f.Constraints = append(f.Constraints, Constraint{Path: k, Value: v})
	}
	return &f, nil
}

// Match reports whether r has the filter type and satisfies every constraint.
func (f *Filter) Match(r *resource.Resource) bool {
	if r == nil || r.Type != f.Type {
		return false
	}
	for _, c := range f.Constraints {
		if !c.Match(r) {
			return false
		}
	}
	return true
}

var gjsonSpecial = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`#`, `\#`,
	`@`, `\@`,
	`|`, `\|`,
)

// gjsonPath escapes the characters gjson interprets, keeping dots as separators.
func gjsonPath(path string) string {
	segments := strings.Split(path, ".")
	for i, s := range segments {
		segments[i] = gjsonSpecial.Replace(s)
	}
	return strings.Join(segments, ".")
}

// Match compares the attribute case-insensitively; '*' in the value is a
// wildcard. An array matches when any element does. An absent attribute
// matches only an empty constraint.
func (c Constraint) Match(r *resource.Resource) bool {
	return matchValue(r.Get(gjsonPath(c.Path)), c.Value)
}

func matchValue(v gjson.Result, want string) bool {
	switch v.Type {
	case gjson.Null:
		if !v.Exists() {
			return want == ""
		}
		return strings.EqualFold(want, "null")
	case gjson.String:
		return pkgStrings.MatchWildcard(want, v.String())
	case gjson.Number, gjson.True, gjson.False:
		return strings.EqualFold(want, v.Raw)
	}
	if v.IsArray() {
		matched := false
		v.ForEach(func(_, item gjson.Result) bool {
			matched = matchValue(item, want)
			return !matched
		})
		return matched
	}
	return false
}

// Select returns the resources of the snapshot matching the filter, in snapshot order.
func (f *Filter) Select(snapshot []*resource.Resource) []*resource.Resource {
	out := make([]*resource.Resource, 0, len(snapshot))
	for _, r := range snapshot {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
