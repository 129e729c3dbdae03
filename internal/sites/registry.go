package sites

import (
	"net/url"
	"sort"

	"github.com/dbutrimov/trackersync/internal/tracker"
)

// Registry is the set of known site adapters, looked up by name or by
// URL host.
type Registry struct {
	adapters map[string]tracker.SiteAdapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...tracker.SiteAdapter) *Registry {
	r := &Registry{adapters: make(map[string]tracker.SiteAdapter)}
	for _, adapter := range adapters {
		r.adapters[adapter.Name()] = adapter
	}
	return r
}

// Options carries the site-specific knobs adapters accept.
type Options struct {
	// BaibakoTab narrows BaibaKo item listings to one release tab:
	// "hd720", "hd1080", "x264", "xvid" or "all".
	BaibakoTab string
}

// Builtin returns every adapter this build ships with.
func Builtin(opts Options) []tracker.SiteAdapter {
	return []tracker.SiteAdapter{
		NewAlexFilm(),
		NewBaibako(opts.BaibakoTab),
		NewLostFilm(),
		NewNewStudio(),
	}
}

// Get looks an adapter up by its canonical name.
func (r *Registry) Get(name string) (tracker.SiteAdapter, bool) {
	adapter, exists := r.adapters[name]
	return adapter, exists
}

// Match finds the adapter whose site the URL belongs to.
func (r *Registry) Match(rawURL string) (tracker.SiteAdapter, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	for _, adapter := range r.adapters {
		if adapter.MatchesHost(u) {
			return adapter, true
		}
	}
	return nil, false
}

// Names returns the registered adapter names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
