// Package roster holds the ranked list of responders a dispatch may use: one
// primary followed by fallbacks in preference order. A Roster is immutable
// and shared; a Selection tracks the responders used by a single dispatch.
package roster

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptyRoster is returned when no primary responder is given.
	ErrEmptyRoster = errors.New("roster: no primary responder")
	// ErrDuplicateResponder is returned when two descriptors share a name.
	ErrDuplicateResponder = errors.New("roster: duplicate responder name")
)

// Descriptor identifies one model configuration.
type Descriptor struct {
	Name            string        `yaml:"name"`
	Provider        string        `yaml:"provider"`
	MaxOutputTokens int64         `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	// TransportRetries is the provider-SDK retry count, normally 0 so that
	// retrying is owned by the orchestrator.
	TransportRetries int `yaml:"transport_retries"`
}

func (d Descriptor) String() string {
	if d.Provider == "" {
		return d.Name
	}
	return d.Provider + "/" + d.Name
}

// Roster is a non-empty ordered list of descriptors; index 0 is the primary.
type Roster struct {
	entries []Descriptor
}

// New builds a roster from a primary and its fallbacks.
func New(primary Descriptor, fallbacks ...Descriptor) (*Roster, error) {
	if strings.TrimSpace(primary.Name) == "" {
		return nil, ErrEmptyRoster
	}

	entries := make([]Descriptor, 0, len(fallbacks)+1)
	seen := make(map[string]struct{}, len(fallbacks)+1)

	for i, d := range append([]Descriptor{primary}, fallbacks...) {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("roster: entry %d has no name", i)
		}
		if _, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateResponder, d.Name)
		}
		seen[d.Name] = struct{}{}
		entries = append(entries, d)
	}

	return &Roster{entries: entries}, nil
}

// MustNew is like New but panics on error. Intended for tests and examples.
func MustNew(primary Descriptor, fallbacks ...Descriptor) *Roster {
	r, err := New(primary, fallbacks...)
	if err != nil {
		panic(err)
	}
	return r
}

// Primary returns the first-choice descriptor.
func (r *Roster) Primary() Descriptor { return r.entries[0] }

// Fallbacks returns a copy of the fallback descriptors in preference order.
func (r *Roster) Fallbacks() []Descriptor {
	out := make([]Descriptor, len(r.entries)-1)
	copy(out, r.entries[1:])
	return out
}

// Descriptors returns a copy of all descriptors, primary first.
func (r *Roster) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of descriptors.
func (r *Roster) Len() int { return len(r.entries) }

// Lookup finds a descriptor by name.
func (r *Roster) Lookup(name string) (Descriptor, bool) {
	for _, d := range r.entries {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Select starts a new per-dispatch selection at the primary.
func (r *Roster) Select() *Selection {
	return &Selection{
		roster: r,
		used:   []int{0},
	}
}

// Selection is the per-dispatch cursor over a roster. It is not safe for
// concurrent use; one dispatch owns one selection.
type Selection struct {
	roster  *Roster
	current int
	used    []int
}

// Current returns the descriptor currently in use.
func (s *Selection) Current() Descriptor { return s.roster.entries[s.current] }

// Advance switches to the first fallback, in roster order, that has not been
// used in this dispatch and marks it used. It reports false and keeps the
// current responder when every descriptor has been used.
func (s *Selection) Advance() (Descriptor, bool) {
	for i := range s.roster.entries {
		if s.isUsed(i) {
			continue
		}
		s.current = i
		s.used = append(s.used, i)
		return s.roster.entries[i], true
	}
	return s.Current(), false
}

// Used returns the names of used descriptors in the order they were first
// selected.
func (s *Selection) Used() []string {
	names := make([]string, len(s.used))
	for i, idx := range s.used {
		names[i] = s.roster.entries[idx].Name
	}
	return names
}

// Exhausted reports whether every descriptor has been used.
func (s *Selection) Exhausted() bool { return len(s.used) == len(s.roster.entries) }

func (s *Selection) isUsed(i int) bool {
	for _, u := range s.used {
		if u == i {
			return true
		}
	}
	return false
}
