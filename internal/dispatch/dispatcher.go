package dispatch

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gridwalker/internal/grid"
	"github.com/fyrsmithlabs/gridwalker/internal/instruction"
	"github.com/fyrsmithlabs/gridwalker/internal/logging"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/gridwalker/internal/dispatch"

// AuditLog receives the audit trail of state-changing commands.
//
// RecordInvocation is called before the command runs and returns the ID the
// following RecordStep and RecordOutcome calls refer to.
type AuditLog interface {
	RecordInvocation(ctx context.Context, commandType, signature string, at time.Time) (string, error)
	RecordStep(ctx context.Context, invocationID, result string, at time.Time) error
	RecordOutcome(ctx context.Context, invocationID, result string, at time.Time) error
}

// Result is the outcome of one instruction.
type Result struct {
	Kind         Kind
	Lines        []string
	Lost         bool
	InvocationID string
}

// command is one row of the dispatch table.
type command struct {
	description string
	syntax      string
	run         func(d *Dispatcher, ctx context.Context, inv *invocation, args []string) []string
}

// invocation carries per-command audit state through a handler.
type invocation struct {
	id   string
	lost bool
}

// Dispatcher executes instructions against a single grid.
//
// A Dispatcher is not safe for concurrent use; callers serialize Handle.
type Dispatcher struct {
	grid   *grid.Grid
	engine *grid.Engine
	audit  AuditLog
	logger *logging.Logger
	tracer trace.Tracer
	now    func() time.Time
	table  [KindUnknown]command
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Steps are logged at trace level.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l.Named("dispatch")
		}
	}
}

// WithTracer sets the tracer used for per-command spans.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithClock overrides the timestamp source for audit records.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// New creates a dispatcher over g. A nil audit log disables auditing.
func New(g *grid.Grid, audit AuditLog, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		grid:   g,
		engine: grid.NewEngine(g),
		audit:  audit,
		logger: logging.Wrap(nil),
		tracer: otel.Tracer(InstrumentationName),
		now:    time.Now,
	}
	d.table = [KindUnknown]command{
		KindNone:  {description: "Enter command", syntax: "", run: (*Dispatcher).runNone},
		KindHelp:  {description: "help", syntax: "h", run: (*Dispatcher).runHelp},
		KindPlace: {description: "place robot", syntax: "c x y o", run: (*Dispatcher).runPlace},
		KindMove:  {description: "move robot", syntax: "m [LRF]...", run: (*Dispatcher).runMove},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Grid returns the grid the dispatcher mutates.
func (d *Dispatcher) Grid() *grid.Grid { return d.grid }

// Handle tokenizes raw and dispatches the tokens.
func (d *Dispatcher) Handle(ctx context.Context, raw string) Result {
	tokens, err := instruction.Tokenize(raw)
	if err != nil {
		d.logger.Warn(ctx, "instruction rejected", zap.String("raw", raw), zap.Error(err))
		return Result{Kind: KindUnknown, Lines: []string{err.Error()}}
	}
	return d.Dispatch(ctx, tokens)
}

// Dispatch runs an already tokenized instruction. The first token selects the
// command; an empty token list is the no-op command.
func (d *Dispatcher) Dispatch(ctx context.Context, tokens []string) Result {
	keyword, args := "", []string(nil)
	if len(tokens) > 0 {
		keyword, args = tokens[0], tokens[1:]
	}

	kind, err := Lookup(keyword)
	if err != nil {
		d.logger.Debug(ctx, "unknown command", zap.String("keyword", keyword))
		return Result{Kind: KindUnknown, Lines: []string{CommandNotFound}}
	}

	ctx, span := d.tracer.Start(ctx, "dispatch."+kind.String(),
		trace.WithAttributes(
			attribute.String("command.kind", kind.String()),
			attribute.Int("command.args", len(args)),
		),
	)
	defer span.End()

	inv := &invocation{}
	if kind.Audited() {
		signature := Signature(args)
		span.SetAttributes(attribute.String("command.signature", signature))
		inv.id = d.recordInvocation(ctx, kind, signature)
		ctx = logging.WithInvocationID(ctx, inv.id)
	}

	lines := d.table[kind].run(d, ctx, inv, args)

	res := Result{Kind: kind, Lost: inv.lost, InvocationID: inv.id}
	if len(lines) == 0 {
		res.Lines = []string{NoResults}
	} else {
		res.Lines = lines
		if kind.Audited() {
			d.recordOutcome(ctx, inv.id, lines[len(lines)-1])
		}
	}

	span.SetAttributes(
		attribute.Int("results", len(res.Lines)),
		attribute.Bool("lost", res.Lost),
	)
	d.logger.Info(ctx, "command handled",
		zap.Stringer("kind", kind),
		zap.Int("results", len(res.Lines)),
		zap.Bool("lost", res.Lost),
	)
	return res
}

// Help returns the usage lines for every keyword except the no-op.
func (d *Dispatcher) Help() []string {
	lines := make([]string, 0, len(d.table)-1)
	for k, c := range d.table {
		kw := Kind(k).Keyword()
		if kw == "" {
			continue
		}
		lines = append(lines, kw+" "+c.description+" usage: "+c.syntax)
	}
	return lines
}

// Prompt returns the label shown when waiting for an instruction.
func (d *Dispatcher) Prompt() string {
	return d.table[KindNone].description + ": "
}

// Signature canonicalizes instruction arguments for the audit log: the
// tokens sorted ascending and joined by single spaces. Token order is not
// preserved.
func Signature(args []string) string {
	sorted := append([]string(nil), args...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

func (d *Dispatcher) runNone(context.Context, *invocation, []string) []string {
	return nil
}

func (d *Dispatcher) runHelp(context.Context, *invocation, []string) []string {
	return d.Help()
}

func (d *Dispatcher) runPlace(ctx context.Context, inv *invocation, args []string) []string {
	p, err := instruction.ParsePlacement(args)
	if err != nil {
		d.logger.Debug(ctx, "placement rejected", zap.Error(err))
		return []string{err.Error()}
	}

	line := d.apply(ctx, inv, func() (grid.Position, error) {
		return d.grid.Place(p.X, p.Y, p.Heading)
	})
	return []string{line}
}

func (d *Dispatcher) runMove(ctx context.Context, inv *invocation, args []string) []string {
	seq, err := instruction.ParseMovementSequence(args)
	if err != nil {
		d.logger.Debug(ctx, "movement rejected", zap.Error(err))
		return []string{err.Error()}
	}

	lines := make([]string, 0, len(seq))
	for _, step := range seq {
		if step.Err != nil {
			line := step.Err.Error()
			d.recordStep(ctx, inv.id, line)
			lines = append(lines, line)
			continue
		}

		action := step.Action
		lines = append(lines, d.apply(ctx, inv, func() (grid.Position, error) {
			return d.engine.Step(action)
		}))
		if inv.lost {
			// Remaining steps are not executed once the robot is lost.
			break
		}
	}
	return lines
}

// apply runs one grid mutation, records it as a step and returns its line.
func (d *Dispatcher) apply(ctx context.Context, inv *invocation, op func() (grid.Position, error)) string {
	pos, err := op()

	var line string
	var lost *grid.LostError
	switch {
	case err == nil:
		line = pos.String()
	case errors.As(err, &lost):
		inv.lost = true
		line = lost.Error()
	default:
		line = err.Error()
	}

	d.logger.Trace(ctx, "step applied", zap.String("result", line))
	d.recordStep(ctx, inv.id, line)
	return line
}

// Audit failures are logged and never change results.

func (d *Dispatcher) recordInvocation(ctx context.Context, kind Kind, signature string) string {
	if d.audit == nil {
		return ""
	}
	id, err := d.audit.RecordInvocation(ctx, kind.Keyword(), signature, d.now())
	if err != nil {
		d.auditFailed(ctx, "invocation", err)
	}
	return id
}

func (d *Dispatcher) recordStep(ctx context.Context, invocationID, result string) {
	if d.audit == nil {
		return
	}
	if err := d.audit.RecordStep(ctx, invocationID, result, d.now()); err != nil {
		d.auditFailed(ctx, "step", err)
	}
}

func (d *Dispatcher) recordOutcome(ctx context.Context, invocationID, result string) {
	if d.audit == nil {
		return
	}
	if err := d.audit.RecordOutcome(ctx, invocationID, result, d.now()); err != nil {
		d.auditFailed(ctx, "outcome", err)
	}
}

func (d *Dispatcher) auditFailed(ctx context.Context, record string, err error) {
	d.logger.Warn(ctx, "audit write failed", zap.String("record", record), zap.Error(err))
	trace.SpanFromContext(ctx).RecordError(err)
	trace.SpanFromContext(ctx).SetStatus(codes.Error, "audit write failed")
}
