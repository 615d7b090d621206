package dedup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

type stubLoader struct {
	leads []model.Lead
	err   error
}

func (s stubLoader) LoadExisting() ([]model.Lead, error) { return s.leads, s.err }

func TestAdmit(t *testing.T) {
	s := New()

	key, v := s.Admit(model.RawRecord{Name: "Acme", Phone: "555"})
	assert.Equal(t, Accepted, v)
	assert.Equal(t, "555", key)

	_, v = s.Admit(model.RawRecord{Name: "Acme Branch", Phone: "555"})
	assert.Equal(t, Duplicate, v, "same phone is the same business")

	_, v = s.Admit(model.RawRecord{Phone: "777"})
	assert.Equal(t, NoKey, v)
	assert.False(t, s.Contains("777"), "rejected records never enter the set")

	_, v = s.Admit(model.RawRecord{Name: "Acme", Address: "1 Main"})
	assert.Equal(t, Accepted, v)
	_, v = s.Admit(model.RawRecord{Name: "Acme", Address: "2 Main"})
	assert.Equal(t, Accepted, v)

	assert.Equal(t, 3, s.Len())
}

func TestAdmitSequenceKeepsFirstOfEachKey(t *testing.T) {
	s := New()
	recs := []model.RawRecord{
		{Name: "A", Phone: "1"}, {Name: "A", Phone: "1"}, {Name: "B", Phone: "2"},
		{Name: "C", Phone: "3"}, {Name: "C", Phone: "3"}, {Name: "C", Phone: "3"},
	}

	var accepted []string
	for _, r := range recs {
		if _, v := s.Admit(r); v == Accepted {
			accepted = append(accepted, r.Name)
		}
	}
	assert.Equal(t, []string{"A", "B", "C"}, accepted)
}

func TestSeed(t *testing.T) {
	s := New()
	n := s.Seed([]model.Lead{
		{RawRecord: model.RawRecord{Name: "A", Phone: "1"}},
		{RawRecord: model.RawRecord{Name: "A again", Phone: "1"}},
		{RawRecord: model.RawRecord{Name: ""}},
	})
	assert.Equal(t, 1, n)

	_, v := s.Admit(model.RawRecord{Name: "A", Phone: "1"})
	assert.Equal(t, Duplicate, v)
}

func TestResume(t *testing.T) {
	s := New()
	leads, err := s.Resume(stubLoader{leads: []model.Lead{
		{RawRecord: model.RawRecord{Name: "A", Address: "x"}},
	}})
	require.NoError(t, err)
	assert.Len(t, leads, 1)
	assert.True(t, s.Contains("A|x"))
}

func TestResumeError(t *testing.T) {
	s := New()
	_, err := s.Resume(stubLoader{err: errors.New("disk gone")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	assert.Zero(t, s.Len())
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "no_key", NoKey.String())
	assert.Equal(t, "duplicate", Duplicate.String())
}
