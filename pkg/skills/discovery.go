package skills

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// Registry discovers installed skills across a fixed set of ecosystems. It
// is read-only after construction and safe to share.
type Registry struct {
	ecosystems []Ecosystem
	homeDir    string
	filter     glob.Glob
}

// Option is a function that configures a Registry
type Option func(*Registry) error

// WithEcosystems replaces the ecosystem table.
func WithEcosystems(ecosystems ...Ecosystem) Option {
	return func(r *Registry) error {
		r.ecosystems = copyEcosystems(ecosystems)
		return nil
	}
}

// WithExtraEcosystems appends ecosystems after the current table.
func WithExtraEcosystems(ecosystems ...Ecosystem) Option {
	return func(r *Registry) error {
		for _, e := range ecosystems {
			if e.Name == "" {
				return errors.New("ecosystem name is required")
			}
		}
		r.ecosystems = append(r.ecosystems, copyEcosystems(ecosystems)...)
		return nil
	}
}

// WithHomeDir sets the directory "~/" global locations resolve against.
func WithHomeDir(dir string) Option {
	return func(r *Registry) error {
		r.homeDir = dir
		return nil
	}
}

// WithFilter restricts discovery to ecosystems whose name matches the glob,
// compared case-insensitively.
func WithFilter(pattern string) Option {
	return func(r *Registry) error {
		if pattern == "" {
			r.filter = nil
			return nil
		}
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return errors.Wrapf(err, "invalid ecosystem filter %q", pattern)
		}
		r.filter = g
		return nil
	}
}

// NewRegistry creates a registry over the default ecosystems unless
// overridden by opts.
func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{ecosystems: DefaultEcosystems()}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.homeDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get user home directory")
		}
		r.homeDir = homeDir
	}
	return r, nil
}

// Ecosystems returns the ecosystems that pass the filter, in table order.
func (r *Registry) Ecosystems() []Ecosystem {
	out := make([]Ecosystem, 0, len(r.ecosystems))
	for _, e := range r.ecosystems {
		if r.filter != nil && !r.filter.Match(strings.ToLower(e.Name)) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Discover lists installed skills. For each ecosystem its global locations
// are visited first, then its project locations when projectRoot is not
// empty. Every immediate child directory of a location holding a SKILL.md
// becomes an entry; children are listed by name. Missing locations are
// ignored. Entries are not deduplicated across ecosystems.
func (r *Registry) Discover(projectRoot string) ([]Entry, error) {
	var entries []Entry
	for _, e := range r.Ecosystems() {
		for _, loc := range e.Global {
			entries = append(entries, r.discoverLocation(e.Name, r.resolveGlobal(loc))...)
		}
		if projectRoot == "" {
			continue
		}
		for _, loc := range e.Project {
			entries = append(entries, r.discoverLocation(e.Name, filepath.Join(projectRoot, loc))...)
		}
	}
	return entries, nil
}

func (r *Registry) resolveGlobal(loc string) string {
	switch {
	case loc == "~":
		return r.homeDir
	case strings.HasPrefix(loc, "~/"):
		return filepath.Join(r.homeDir, loc[2:])
	case filepath.IsAbs(loc):
		return loc
	default:
		return filepath.Join(r.homeDir, loc)
	}
}

// discoverLocation lists the skill directories directly under dir.
func (r *Registry) discoverLocation(ecosystem, dir string) []Entry {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil
	}

	children, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })

	var entries []Entry
	for _, child := range children {
		childPath := filepath.Join(dir, child.Name())

		// Stat follows symlinks so linked skill deployments are found.
		info, err := os.Stat(childPath)
		if err != nil || !info.IsDir() {
			continue
		}
		if !HasManifest(childPath) {
			continue
		}

		md, _ := LoadMetadata(childPath)
		entries = append(entries, Entry{
			Ecosystem:   ecosystem,
			Directory:   childPath,
			Name:        md.Name,
			Description: md.Description,
		})
	}
	return entries
}

func copyEcosystems(in []Ecosystem) []Ecosystem {
	out := make([]Ecosystem, len(in))
	for i, e := range in {
		out[i] = Ecosystem{
			Name:    e.Name,
			Global:  append([]string(nil), e.Global...),
			Project: append([]string(nil), e.Project...),
		}
	}
	return out
}

// GroupByEcosystem groups entries by ecosystem name.
func GroupByEcosystem(entries []Entry) map[string][]Entry {
	groups := make(map[string][]Entry)
	for _, e := range entries {
		groups[e.Ecosystem] = append(groups[e.Ecosystem], e)
	}
	return groups
}
