// Package competition holds the immutable rules of a running competition:
// which flag tokens exist, what they are worth, and when scoring stops.
package competition

import (
	"fmt"

	"github.com/ctf-scoreboard/internal/domain"
)

// Catalog maps flag tokens to point values. It is built once and never
// mutated, so it is safe for concurrent use.
type Catalog struct {
	flags map[string]int64
}

// NewCatalog builds a catalog from a token -> points map. The map is copied.
func NewCatalog(flags map[string]int64) (*Catalog, error) {
	if len(flags) == 0 {
		return nil, fmt.Errorf("%w: no flags defined", domain.ErrInvalidConfig)
	}

	c := &Catalog{flags: make(map[string]int64, len(flags))}
	for token, points := range flags {
		if token == "" {
			return nil, fmt.Errorf("%w: empty flag token", domain.ErrInvalidConfig)
		}
		c.flags[token] = points
	}
	return c, nil
}

// IsValid reports whether token is a flag known to the competition.
// Matching is exact and case-sensitive.
func (c *Catalog) IsValid(token string) bool {
	_, ok := c.flags[token]
	return ok
}

// ValueOf returns the points awarded for token. Only meaningful when
// IsValid(token) holds.
func (c *Catalog) ValueOf(token string) int64 {
	return c.flags[token]
}

// Total returns the number of flags in the catalog.
func (c *Catalog) Total() int {
	return len(c.flags)
}

// TotalPoints returns the sum of all flag values.
func (c *Catalog) TotalPoints() int64 {
	var sum int64
	for _, points := range c.flags {
		sum += points
	}
	return sum
}
