// Package enrich augments admitted leads with contact details, decision
// makers, AI pitch findings and a business-kind tag. Every step is
// best-effort: a failing step leaves placeholders and the lead moves on.
package enrich

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Step names.
const (
	StepContact       = "contact"
	StepEmailSearch   = "email_search"
	StepDecisionMaker = "decision_maker"
	StepPitch         = "pitch"
	StepClassify      = "classify"
)

// Notify receives human-readable narration for the caller's event stream.
// It may be nil.
type Notify func(msg string)

func (n Notify) send(format string, args ...any) {
	if n != nil {
		n(fmt.Sprintf(format, args...))
	}
}

// Step is one enrichment function. Run fills fields of lead in place and
// reports failure as an error; Placeholder writes the fallback values used
// when Run fails or panics.
type Step struct {
	Name        string
	Run         func(ctx context.Context, lead *model.Lead, notify Notify) error
	Placeholder func(lead *model.Lead)
}

// Stage runs steps in order over one lead at a time.
type Stage struct {
	steps []Step
}

// NewStage creates a Stage. Steps run in the order given.
func NewStage(steps ...Step) *Stage {
	return &Stage{steps: steps}
}

// Names returns the configured step names in order.
func (s *Stage) Names() []string {
	names := make([]string, len(s.steps))
	for i, st := range s.steps {
		names[i] = st.Name
	}
	return names
}

// Enrich runs every step over lead and returns the result. It never fails:
// a step that errors or panics is replaced by its placeholder. Identity
// and provenance fields always come back unchanged. Once ctx is done the
// remaining steps are skipped.
func (s *Stage) Enrich(ctx context.Context, lead model.Lead, notify Notify) model.Lead {
	for _, st := range s.steps {
		if ctx.Err() != nil {
			break
		}
		lead = runStep(ctx, st, lead, notify)
	}
	return lead
}

func runStep(ctx context.Context, st Step, in model.Lead, notify Notify) model.Lead {
	work := in
	work.Findings = slices.Clone(in.Findings)

	err := guard(func() error { return st.Run(ctx, &work, notify) })
	if err != nil {
		zap.L().Debug("enrich: step failed",
			zap.String("step", st.Name),
			zap.String("lead", in.Name),
			zap.Error(err),
		)
		work = in
		work.Findings = slices.Clone(in.Findings)
		if st.Placeholder != nil {
			// A placeholder that panics leaves the lead as it was.
			if perr := guard(func() error { st.Placeholder(&work); return nil }); perr != nil {
				work = in
			}
		}
	}

	work.RawRecord = in.RawRecord
	work.SourceQuery = in.SourceQuery
	work.TargetLocation = in.TargetLocation
	work.TargetCategory = in.TargetCategory
	return work
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("enrich: panic: %v", r)
			zap.L().Debug("enrich: recovered panic", zap.ByteString("stack", debug.Stack()))
		}
	}()
	return fn()
}
