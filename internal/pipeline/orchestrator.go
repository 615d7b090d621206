// Package pipeline drives a lead run: it expands the intent into queries,
// pages through the provider, deduplicates, enriches and persists each new
// lead, and reports progress as a stream of events.
package pipeline

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/dedup"
	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/provider"
	"github.com/sells-group/leadgen-cli/internal/query"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/sink"
)

// DefaultLimit is the lead target when a request does not set one.
const DefaultLimit = 10

// Request describes one run.
type Request struct {
	Keyword  string
	Location string
	// Category tags leads. Catalog runs take it from the catalog.
	Category string
	// Source is the lead file re-enriched by file-based presets.
	Source string
	// Limit is the number of leads the target file should hold. Zero means
	// DefaultLimit, or every row of Source for file-based presets.
	Limit          int
	RequireEmail   bool
	RequireWebsite bool
	// Target resumes an existing run target instead of starting a new one.
	Target string
}

// Exporter renders a finished run target as a report.
type Exporter interface {
	Export(target string) (string, error)
}

// Ledger records run outcomes. It may be nil.
type Ledger interface {
	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)
	UpdateProgress(ctx context.Context, runID string, accepted int) error
	CompleteRun(ctx context.Context, runID string, accepted int) error
	FailRun(ctx context.Context, runID string, accepted int, reason string) error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Preset           Preset
	Expander         query.Expander
	Adapter          provider.Adapter
	Stage            *enrich.Stage
	Exporter         Exporter
	Ledger           Ledger
	OutputDir        string
	MaxPagesPerQuery int
	ProviderPause    time.Duration
	LogSkips         bool
	Now              func() time.Time
}

// Orchestrator runs requests for one preset. It holds no per-run state and
// may serve several runs, one goroutine each.
type Orchestrator struct {
	d Deps
}

// New creates an Orchestrator.
func New(d Deps) *Orchestrator {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Stage == nil {
		d.Stage = enrich.NewStage()
	}
	if d.OutputDir == "" {
		d.OutputDir = "generated_leads"
	}
	return &Orchestrator{d: d}
}

// Preset returns the orchestrator's preset.
func (o *Orchestrator) Preset() Preset { return o.d.Preset }

// TargetFor returns the run target a request will write to.
func (o *Orchestrator) TargetFor(req Request) string {
	if req.Target != "" {
		return req.Target
	}
	if o.d.Preset.Adapter == AdapterFile && req.Source != "" {
		return AnalyzedPath(req.Source)
	}
	return sink.TargetPath(o.d.OutputDir, o.d.Preset.Prefix, req.Keyword, req.Location, o.d.Now())
}

// AnalyzedPath is the default target of a re-enrichment run over source.
// Running again over the same source resumes it.
func AnalyzedPath(source string) string {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	return base + "_analyzed.csv"
}

// Run executes req and yields its events. Nothing happens until the
// sequence is ranged over. The stream ends with exactly one done event, or
// with an error event when the run fails. Stopping the range early cancels
// the run; everything persisted so far stays resumable.
func (o *Orchestrator) Run(ctx context.Context, req Request) iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		r := &run{o: o, req: req, yield: yield}
		r.execute(ctx)
	}
}

// run is the state of one Run call.
type run struct {
	o     *Orchestrator
	req   Request
	yield func(model.Event) bool

	stopped  bool
	yielding bool
	state    model.RunState
	limit    int
	count    int
	target   string
	runID    string
	seen     *dedup.SeenSet
	out      *sink.CSVSink
	log      *zap.Logger
}

func (r *run) emit(e model.Event) bool {
	if r.stopped {
		return false
	}
	r.yielding = true
	ok := r.yield(e)
	r.yielding = false
	if !ok {
		r.stopped = true
	}
	return ok
}

func (r *run) logf(format string, args ...any) bool {
	return r.emit(model.LogEvent(fmt.Sprintf(format, args...)))
}

func (r *run) execute(ctx context.Context) {
	r.state = model.RunStateInit
	r.log = zap.L().With(zap.String("preset", r.o.d.Preset.Name))

	defer func() {
		if p := recover(); p != nil {
			if r.yielding {
				// The consumer's loop body panicked; it is not ours to handle.
				panic(p)
			}
			r.fail(ctx, &model.FatalError{Stage: "pipeline", Err: eris.Errorf("panic: %v", p)})
		}
	}()

	queries, ok := r.init(ctx)
	if !ok {
		return
	}

	r.state = model.RunStateRunning
	if r.count < r.limit || r.limit == 0 {
		if !r.fetch(ctx, queries) {
			return
		}
	}
	r.complete(ctx)
}

// init validates the request, resolves the target and seeds the seen-set
// from it.
func (r *run) init(ctx context.Context) ([]string, bool) {
	d := r.o.d
	req := r.req

	switch {
	case req.Limit < 0:
		r.fail(ctx, eris.Errorf("pipeline: limit must be positive, got %d", req.Limit))
		return nil, false
	case req.Limit > 0:
		r.limit = req.Limit
	case d.Preset.Adapter != AdapterFile:
		r.limit = DefaultLimit
	}

	intent := query.Intent{Keyword: req.Keyword, Location: req.Location, Category: req.Category, File: req.Source}
	if intent.Category == "" {
		if c, ok := d.Expander.(interface{ CategoryFor(query.Intent) string }); ok {
			intent.Category = c.CategoryFor(intent)
		}
	}
	r.req.Category = intent.Category

	queries, err := d.Expander.Expand(intent)
	if err != nil {
		r.fail(ctx, err)
		return nil, false
	}
	if err := d.Adapter.Validate(); err != nil {
		r.fail(ctx, err)
		return nil, false
	}

	r.target = r.o.TargetFor(req)
	r.log = r.log.With(zap.String("target", r.target))

	r.seen = dedup.New()
	r.out = sink.NewCSVSink(r.target)
	existing, err := r.seen.Resume(r.out)
	if err != nil {
		r.fail(ctx, err)
		return nil, false
	}
	r.count = len(existing)

	if d.Ledger != nil {
		created, err := d.Ledger.CreateRun(ctx, model.Run{
			Preset: d.Preset.Name, Keyword: req.Keyword, Location: req.Location,
			Target: r.target, Limit: r.limit, Accepted: r.count,
		})
		if err != nil {
			r.log.Warn("pipeline: failed to record run", zap.Error(err))
		} else {
			r.runID = created.ID
			r.log = r.log.With(zap.String("run_id", r.runID))
		}
	}

	r.log.Info("pipeline: run started", zap.Int("limit", r.limit), zap.Int("queries", len(queries)), zap.Int("resumed", r.count))

	target := "all leads in file"
	if r.limit > 0 {
		target = fmt.Sprintf("%d leads", r.limit)
	}
	subject := fmt.Sprintf("'%s' in '%s'", req.Keyword, req.Location)
	if d.Preset.Adapter == AdapterFile {
		subject = fmt.Sprintf("'%s'", req.Source)
	}
	if !r.logf("Starting %s lead generation for %s. Target: %s.", d.Preset.Name, subject, target) {
		r.fail(ctx, errConsumerGone)
		return nil, false
	}
	if r.count > 0 && !r.logf("Resuming %s: %d leads already saved.", filepath.Base(r.target), r.count) {
		r.fail(ctx, errConsumerGone)
		return nil, false
	}
	return queries, true
}

var errConsumerGone = eris.New("pipeline: event consumer stopped")

// fetch pages through the queries until the limit is reached. It returns
// false when the run ended in failure.
func (r *run) fetch(ctx context.Context, queries []string) bool {
	d := r.o.d
	seq := query.NewSequencer(d.Adapter, d.MaxPagesPerQuery, resilience.NewPacer(d.ProviderPause))

	for pr := range seq.Pages(ctx, queries) {
		if pr.Err != nil {
			if provider.IsFatal(pr.Err) {
				r.fail(ctx, pr.Err)
				return false
			}
			if !r.logf("Search failed for %q: %v. Moving on.", pr.Query, pr.Err) {
				break
			}
			continue
		}

		recs := pr.Page.Records
		if len(recs) == 0 {
			if !r.logf("No more results for %q.", pr.Query) {
				break
			}
			continue
		}
		if !r.logf("Fetched page %d for %q: %d results.", pr.Number, pr.Query, len(recs)) {
			break
		}
		if d.Preset.Adapter == AdapterFile && r.limit == 0 {
			r.limit = max(len(recs), r.count)
		}

		done, ok := r.consume(ctx, pr)
		if !ok {
			return false
		}
		if done {
			return true
		}
	}

	if r.stopped {
		r.fail(ctx, errConsumerGone)
		return false
	}
	if err := ctx.Err(); err != nil {
		r.fail(ctx, eris.Wrap(err, "pipeline: run cancelled"))
		return false
	}
	return true
}

// consume handles the records of one page. done reports that the limit was
// reached; ok is false when the run failed.
func (r *run) consume(ctx context.Context, pr query.PageResult) (done, ok bool) {
	d := r.o.d
	notify := enrich.Notify(func(msg string) { r.logf("%s", msg) })

	for i, raw := range pr.Page.Records {
		if r.count >= r.limit {
			return true, true
		}
		if r.stopped {
			r.fail(ctx, errConsumerGone)
			return false, false
		}
		if err := ctx.Err(); err != nil {
			r.fail(ctx, eris.Wrap(err, "pipeline: run cancelled"))
			return false, false
		}

		_, verdict := r.seen.Admit(raw)
		switch verdict {
		case dedup.NoKey:
			continue
		case dedup.Duplicate:
			if d.LogSkips {
				r.logf("Skipping %s (already saved).", raw.Name)
			}
			continue
		}

		lead := model.NewLead(raw, pr.Query, r.req.Location, r.req.Category)
		if i < len(pr.Page.Prior) {
			lead = pr.Page.Prior[i]
			lead.RawRecord = raw
		}

		lead = d.Stage.Enrich(ctx, lead, notify)
		if r.stopped {
			r.fail(ctx, errConsumerGone)
			return false, false
		}
		if err := ctx.Err(); err != nil {
			r.fail(ctx, eris.Wrap(err, "pipeline: run cancelled"))
			return false, false
		}

		if reason := r.rejects(lead); reason != "" {
			r.logf("Skipping %s (%s).", lead.Name, reason)
			continue
		}

		if err := r.out.Persist(lead); err != nil {
			r.fail(ctx, err)
			return false, false
		}
		r.count++
		if d.Ledger != nil && r.runID != "" {
			if err := d.Ledger.UpdateProgress(ctx, r.runID, r.count); err != nil {
				r.log.Warn("pipeline: failed to record progress", zap.Error(err))
			}
		}
		r.emit(model.ProgressEvent(r.count, r.limit, lead.Name))
	}
	return r.count >= r.limit, true
}

// rejects applies the request filters to an enriched lead.
func (r *run) rejects(l model.Lead) string {
	if r.req.RequireWebsite && strings.TrimSpace(l.Website) == "" {
		return "no website"
	}
	if r.req.RequireEmail && !hasValue(l.Email) {
		return "no email"
	}
	return ""
}

func hasValue(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != model.NotApplicable && s != model.NotFound
}

// complete exports the report, records the outcome and emits done.
func (r *run) complete(ctx context.Context) {
	d := r.o.d
	filename := filepath.Base(r.target)

	if d.Exporter != nil && r.count > 0 {
		r.logf("Building styled Excel report...")
		report, err := d.Exporter.Export(r.target)
		switch {
		case err != nil:
			r.log.Error("pipeline: export failed", zap.Error(err))
			r.emit(model.ErrorEvent(fmt.Sprintf("Report export failed: %v. Leads are saved in %s.", err, filename)))
		case report != "":
			r.logf("Report saved to %s.", filepath.Base(report))
		}
	}

	r.state = model.RunStateComplete
	if d.Ledger != nil && r.runID != "" {
		if err := d.Ledger.CompleteRun(context.WithoutCancel(ctx), r.runID, r.count); err != nil {
			r.log.Warn("pipeline: failed to record completion", zap.Error(err))
		}
	}
	r.log.Info("pipeline: run complete", zap.Int("leads", r.count))

	r.logf("Finished. Generated %d leads. Saved to %s", r.count, filename)
	r.emit(model.DoneEvent(filename, r.target, r.count))
}

// fail ends the run with one error event.
func (r *run) fail(ctx context.Context, err error) {
	if r.state == model.RunStateFailed {
		return
	}
	r.state = model.RunStateFailed

	r.log.Error("pipeline: run failed", zap.Int("leads", r.count), zap.Error(err))
	if r.o.d.Ledger != nil && r.runID != "" {
		if lerr := r.o.d.Ledger.FailRun(context.WithoutCancel(ctx), r.runID, r.count, err.Error()); lerr != nil {
			r.log.Warn("pipeline: failed to record failure", zap.Error(lerr))
		}
	}
	r.emit(model.ErrorEvent(err.Error()))
}
