package wheretogo

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Query is the open set of parameters forwarded to a Source. Map iteration
// order is random, so anything derived from a Query for comparison purposes
// must go through Pairs, which sorts.
type Query map[string][]string

// Pairs serializes the query as sorted "name=value" strings, one per
// parameter. Multiple values for one name are joined with a comma in the
// order they were given.
func (q Query) Pairs() ([]string, error) {
	pairs := make([]string, 0, len(q))
	for k, v := range q {
		if k == "" || strings.Contains(k, "=") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidQuery, k)
		}
		pairs = append(pairs, k+"="+strings.Join(v, ","))
	}
	sort.Strings(pairs)

	return pairs, nil
}

// Merge returns a new Query holding the parameters of q overridden by those of o.
func (q Query) Merge(o Query) Query {
	m := make(Query, len(q)+len(o))
	for k, v := range q {
		m[k] = append([]string(nil), v...)
	}
	for k, v := range o {
		m[k] = append([]string(nil), v...)
	}
	return m
}

// Values converts the query into url.Values with multi-valued parameters
// joined by commas, as the Discovery API expects.
func (q Query) Values() url.Values {
	vals := make(url.Values, len(q))
	for k, v := range q {
		vals.Set(k, strings.Join(v, ","))
	}
	return vals
}

// Key identifies one query against a Source. Two keys built from the same
// range, args and query parameters compare equal regardless of how the
// dates were supplied or the order the parameters were inserted in.
type Key struct {
	Start string
	End   string
	Args  []string
	Query []string
}

// NewKey builds a Key from a normalized date range, the serialized query
// and any extra positional arguments.
func NewKey(start, end time.Time, q Query, args ...string) (Key, error) {
	pairs, err := q.Pairs()
	if err != nil {
		return Key{}, err
	}

	return Key{
		Start: formatCanonical(start),
		End:   formatCanonical(end),
		Args:  append([]string(nil), args...),
		Query: pairs,
	}, nil
}

// Equal reports whether k and o identify the same query.
func (k Key) Equal(o Key) bool {
	return k.String() == o.String()
}

// String renders the key as the string handed to a Cache. Components are
// escaped so that no two distinct keys render the same.
func (k Key) String() string {
	parts := make([]string, 0, 2+len(k.Args)+len(k.Query))
	parts = append(parts, k.Start, k.End)
	for _, a := range k.Args {
		parts = append(parts, url.QueryEscape(a))
	}
	for _, p := range k.Query {
		parts = append(parts, url.QueryEscape(p))
	}

	return fmt.Sprintf("%d#%s", len(k.Args), strings.Join(parts, "#"))
}
