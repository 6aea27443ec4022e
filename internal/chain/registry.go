// Package chain runs an ordered list of LLM providers for one role,
// stopping at the first acceptable answer. Providers are described once at
// startup; their clients are built lazily on first use.
package chain

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/souchan25/virtualHealthAssistant/internal/llm"
)

// Role selects which chain a provider belongs to.
type Role string

const (
	RoleChat     Role = "chat"
	RoleValidate Role = "validate"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleChat, RoleValidate:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown provider role %q (want chat or validate)", s)
}

// Descriptor is the static configuration of one chain entry.
type Descriptor struct {
	Name     string
	Role     Role
	Timeout  time.Duration
	Priority int
	Enabled  bool

	Client llm.ClientConfig

	// MaxTokens and Temperature apply when the request leaves them unset.
	MaxTokens   int
	Temperature float64

	// RatePerMinute throttles calls to this entry. Zero disables throttling.
	RatePerMinute float64
}

// Factory builds the client for a descriptor.
type Factory func(ctx context.Context, d Descriptor) (llm.Provider, error)

// StaticFactory serves prebuilt providers by descriptor name.
func StaticFactory(providers map[string]llm.Provider) Factory {
	return func(_ context.Context, d Descriptor) (llm.Provider, error) {
		p, ok := providers[d.Name]
		if !ok {
			return nil, fmt.Errorf("no provider registered for %q", d.Name)
		}
		return p, nil
	}
}

type entry struct {
	desc    Descriptor
	factory Factory
	limiter *rate.Limiter

	once     sync.Once
	provider llm.Provider
	err      error
}

// client returns the lazily constructed provider. Construction runs at most
// once even under concurrent callers; a construction error is sticky.
func (e *entry) client(ctx context.Context) (llm.Provider, error) {
	e.once.Do(func() {
		e.provider, e.err = e.factory(context.WithoutCancel(ctx), e.desc)
	})
	return e.provider, e.err
}

// Registry holds the ordered, enabled chain entries for every role. It is
// read-only after construction.
type Registry struct {
	entries map[Role][]*entry
}

// NewRegistry validates descriptors and orders them by (priority, name).
// Disabled descriptors are dropped.
func NewRegistry(descs []Descriptor, factory Factory) (*Registry, error) {
	seen := make(map[string]bool, len(descs))
	sorted := make([]Descriptor, 0, len(descs))
	for _, d := range descs {
		if d.Name == "" {
			return nil, fmt.Errorf("provider descriptor without a name")
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("duplicate provider name %q", d.Name)
		}
		seen[d.Name] = true
		if _, err := ParseRole(string(d.Role)); err != nil {
			return nil, fmt.Errorf("provider %q: %w", d.Name, err)
		}
		if d.Timeout <= 0 {
			return nil, fmt.Errorf("provider %q: timeout must be positive", d.Name)
		}
		if d.Enabled {
			sorted = append(sorted, d)
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].Name < sorted[j].Name
	})

	r := &Registry{entries: map[Role][]*entry{}}
	for _, d := range sorted {
		e := &entry{desc: d, factory: factory}
		if d.RatePerMinute > 0 {
			burst := int(d.RatePerMinute / 60)
			if burst < 1 {
				burst = 1
			}
			e.limiter = rate.NewLimiter(rate.Limit(d.RatePerMinute/60), burst)
		}
		r.entries[d.Role] = append(r.entries[d.Role], e)
	}
	return r, nil
}

// Providers returns the ordered descriptors for a role.
func (r *Registry) Providers(role Role) []Descriptor {
	es := r.entries[role]
	out := make([]Descriptor, len(es))
	for i, e := range es {
		out[i] = e.desc
	}
	return out
}

// Len returns the number of enabled entries for a role.
func (r *Registry) Len(role Role) int { return len(r.entries[role]) }
