package rules

import (
	"sync"

	"github.com/pkg/errors"
)

// Catalog is an immutable, validated set of rules.
type Catalog struct {
	rules []*Rule
	byID  map[string]*Rule
}

// NewCatalog validates and compiles the given rule definitions. The
// definitions are copied so later changes by the caller have no effect.
func NewCatalog(defs []Rule) (*Catalog, error) {
	c := &Catalog{
		rules: make([]*Rule, 0, len(defs)),
		byID:  make(map[string]*Rule, len(defs)),
	}
	for _, d := range defs {
		r := d
		r.Patterns = append([]string(nil), d.Patterns...)
		r.Targets = append([]TargetType(nil), d.Targets...)
		if err := r.compile(); err != nil {
			return nil, errors.Wrap(err, "invalid rule catalog")
		}
		if _, dup := c.byID[r.ID]; dup {
			return nil, errors.Errorf("invalid rule catalog: duplicate rule id %s", r.ID)
		}
		c.rules = append(c.rules, &r)
		c.byID[r.ID] = &r
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on a malformed definition.
func MustCatalog(defs []Rule) *Catalog {
	c, err := NewCatalog(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// Rules returns the rules in declaration order. The returned slice must not
// be modified.
func (c *Catalog) Rules() []*Rule {
	return c.rules
}

// Get looks a rule up by id.
func (c *Catalog) Get(id string) (*Rule, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// ByCategory returns the rules belonging to the given category.
func (c *Catalog) ByCategory(cat Category) []*Rule {
	var out []*Rule
	for _, r := range c.rules {
		if r.Category == cat {
			out = append(out, r)
		}
	}
	return out
}

// Applicable returns the rules evaluated against the given target type.
func (c *Catalog) Applicable(target TargetType) []*Rule {
	var out []*Rule
	for _, r := range c.rules {
		if r.AppliesTo(target) {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of rules.
func (c *Catalog) Len() int {
	return len(c.rules)
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog. It is compiled on first use and
// panics if a built-in definition is malformed.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = MustCatalog(builtinRules())
	})
	return defaultCatalog
}
