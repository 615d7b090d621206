// Package dedup tracks which businesses a run has already accepted.
package dedup

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Verdict is the outcome of admitting a record.
type Verdict int

const (
	// Accepted means the record is new; its key is now seen.
	Accepted Verdict = iota
	// NoKey means the record has no name and can never be admitted.
	NoKey
	// Duplicate means a record with the same key was already accepted.
	Duplicate
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case NoKey:
		return "no_key"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Loader reads the leads already persisted to a run target.
type Loader interface {
	LoadExisting() ([]model.Lead, error)
}

// SeenSet holds the identity keys accepted during one run. It is owned by
// a single run and is not safe for concurrent use.
type SeenSet struct {
	keys map[string]struct{}
}

// New returns an empty SeenSet.
func New() *SeenSet {
	return &SeenSet{keys: make(map[string]struct{})}
}

// Admit decides whether raw is a new business. An accepted record's key is
// inserted before Admit returns, so a record later rejected by a filter
// stays seen for the rest of the run.
func (s *SeenSet) Admit(raw model.RawRecord) (string, Verdict) {
	key, ok := model.IdentityKey(raw)
	if !ok {
		return "", NoKey
	}
	if _, dup := s.keys[key]; dup {
		return key, Duplicate
	}
	s.keys[key] = struct{}{}
	return key, Accepted
}

// Seed inserts the keys of already-persisted leads and returns how many
// distinct keys were added.
func (s *SeenSet) Seed(leads []model.Lead) int {
	added := 0
	for _, l := range leads {
		key, ok := l.Key()
		if !ok {
			continue
		}
		if _, dup := s.keys[key]; dup {
			continue
		}
		s.keys[key] = struct{}{}
		added++
	}
	return added
}

// Resume seeds the set from a run target and returns the persisted leads.
// A missing target yields an empty result.
func (s *SeenSet) Resume(l Loader) ([]model.Lead, error) {
	leads, err := l.LoadExisting()
	if err != nil {
		return nil, eris.Wrap(err, "dedup: load existing")
	}
	s.Seed(leads)
	return leads, nil
}

// Contains reports whether key has been accepted.
func (s *SeenSet) Contains(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of accepted keys.
func (s *SeenSet) Len() int { return len(s.keys) }
