package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/gridwalker/internal/grid"
	"github.com/fyrsmithlabs/gridwalker/internal/logging"
	"github.com/fyrsmithlabs/gridwalker/internal/telemetry"
)

// auditEvent is one call observed by fakeAudit.
type auditEvent struct {
	Kind  string // invocation, step, outcome
	ID    string
	Type  string
	Value string
	At    time.Time
}

type fakeAudit struct {
	mu     sync.Mutex
	events []auditEvent
	next   int
	fail   error
}

func (f *fakeAudit) RecordInvocation(_ context.Context, commandType, signature string, at time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := fmt.Sprintf("inv-%d", f.next)
	f.events = append(f.events, auditEvent{Kind: "invocation", ID: id, Type: commandType, Value: signature, At: at})
	return id, f.fail
}

func (f *fakeAudit) RecordStep(_ context.Context, id, result string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, auditEvent{Kind: "step", ID: id, Value: result, At: at})
	return f.fail
}

func (f *fakeAudit) RecordOutcome(_ context.Context, id, result string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, auditEvent{Kind: "outcome", ID: id, Value: result, At: at})
	return f.fail
}

func (f *fakeAudit) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Kind
	}
	return out
}

func (f *fakeAudit) values(kind string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		if e.Kind == kind {
			out = append(out, e.Value)
		}
	}
	return out
}

func newDispatcher(t *testing.T, w, h int, opts ...Option) (*Dispatcher, *fakeAudit) {
	t.Helper()
	g, err := grid.New(w, h)
	require.NoError(t, err)
	audit := &fakeAudit{}
	return New(g, audit, opts...), audit
}

func TestLookup(t *testing.T) {
	for _, kw := range []string{"", "h", "c", "m"} {
		k, err := Lookup(kw)
		require.NoError(t, err, kw)
		assert.Equal(t, kw, k.Keyword())
	}

	k, err := Lookup("x")
	assert.ErrorIs(t, err, ErrCommandNotFound)
	assert.Equal(t, KindUnknown, k)
	assert.Equal(t, "unknown", k.String())
	assert.Equal(t, "", k.Keyword())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestSignature(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, ""},
		{[]string{"1", "2", "E"}, "1 2 E"},
		{[]string{"3", "1", "N"}, "1 3 N"},
		{[]string{"RFRF"}, "RFRF"},
		{[]string{"b", "a", "B"}, "B a b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Signature(tt.args), tt.args)
	}

	args := []string{"3", "1"}
	Signature(args)
	assert.Equal(t, []string{"3", "1"}, args, "Signature must not reorder its input")
}

func TestDispatcher_Help(t *testing.T) {
	d, audit := newDispatcher(t, 6, 4)
	ctx := context.Background()
	want := []string{
		"h help usage: h",
		"c place robot usage: c x y o",
		"m move robot usage: m [LRF]...",
	}

	// Help is idempotent from any state, however often it runs.
	for _, setup := range []string{"", "c 3 2 W", "m FL"} {
		d.Handle(ctx, setup)
		before := d.Grid().Robot()
		drawing := d.Grid().Render()
		recorded := len(audit.kinds())

		for i := 0; i < 5; i++ {
			res := d.Handle(ctx, "h")
			assert.Equal(t, KindHelp, res.Kind)
			assert.Equal(t, want, res.Lines, "call %d after %q", i+1, setup)
			assert.Empty(t, res.InvocationID)
			assert.Equal(t, before, d.Grid().Robot(), "call %d after %q", i+1, setup)
			assert.Equal(t, drawing, d.Grid().Render(), "call %d after %q", i+1, setup)
			assert.Len(t, audit.kinds(), recorded, "help is never audited")
		}
	}
	assert.Equal(t, "Enter command: ", d.Prompt())
}

func TestDispatcher_Empty(t *testing.T) {
	d, audit := newDispatcher(t, 6, 4)

	for _, raw := range []string{"", "   ", "\t\n"} {
		res := d.Handle(context.Background(), raw)
		assert.Equal(t, KindNone, res.Kind)
		assert.Equal(t, []string{NoResults}, res.Lines)
	}
	assert.Empty(t, audit.kinds())
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, audit := newDispatcher(t, 6, 4)

	res := d.Handle(context.Background(), "x 1 2 N")

	assert.Equal(t, KindUnknown, res.Kind)
	assert.Equal(t, []string{CommandNotFound}, res.Lines)
	assert.Empty(t, audit.kinds())
}

func TestDispatcher_Place(t *testing.T) {
	d, audit := newDispatcher(t, 6, 4)

	res := d.Handle(context.Background(), "c 3 1 N")

	assert.Equal(t, KindPlace, res.Kind)
	assert.Equal(t, []string{"3 1 N"}, res.Lines)
	assert.False(t, res.Lost)
	assert.Equal(t, "inv-1", res.InvocationID)
	assert.Equal(t, grid.Position{X: 3, Y: 1, Heading: grid.North}, d.Grid().Robot())

	assert.Equal(t, []string{"invocation", "step", "outcome"}, audit.kinds())
	assert.Equal(t, "c", audit.events[0].Type)
	assert.Equal(t, "1 3 N", audit.events[0].Value)
	assert.Equal(t, []string{"3 1 N"}, audit.values("step"))
	assert.Equal(t, []string{"3 1 N"}, audit.values("outcome"))
	for _, e := range audit.events {
		assert.Equal(t, "inv-1", e.ID)
	}
}

func TestDispatcher_PlaceLost(t *testing.T) {
	d, audit := newDispatcher(t, 6, 4)
	d.Handle(context.Background(), "c 2 2 W")

	res := d.Handle(context.Background(), "c 7 1 N")

	assert.True(t, res.Lost)
	assert.Equal(t, []string{"7 1 N LOST"}, res.Lines)
	assert.Equal(t, grid.Position{X: 2, Y: 2, Heading: grid.West}, d.Grid().Robot())
	assert.Equal(t, []string{"2 2 W", "7 1 N LOST"}, audit.values("step"))
	assert.Equal(t, []string{"2 2 W", "7 1 N LOST"}, audit.values("outcome"))
}

func TestDispatcher_PlaceParseErrors(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"c a 1 N", `invalid coordinate: "a"`},
		{"c 1abc 1 N", `invalid coordinate: "1abc"`},
		{"c 1 1 Q", `invalid orientation: "Q"`},
		{"c 1 1", "missing arguments: want x y orientation, got 2 argument(s)"},
		{"c", "missing arguments: want x y orientation, got 0 argument(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			d, audit := newDispatcher(t, 6, 4)

			res := d.Handle(context.Background(), tt.raw)

			assert.Equal(t, []string{tt.want}, res.Lines)
			assert.False(t, res.Lost)
			assert.Equal(t, grid.Position{Heading: grid.North}, d.Grid().Robot())
			assert.Equal(t, []string{"invocation", "outcome"}, audit.kinds())
			assert.Equal(t, []string{tt.want}, audit.values("outcome"))
		})
	}
}

func TestDispatcher_MoveLoop(t *testing.T) {
	d, audit := newDispatcher(t, 5, 3)
	d.Handle(context.Background(), "c 1 1 E")

	res := d.Handle(context.Background(), "m RFRFRFRF")

	assert.Equal(t, KindMove, res.Kind)
	assert.Equal(t, []string{
		"1 1 S", "1 0 S", "1 0 W", "0 0 W",
		"0 0 N", "0 1 N", "0 1 E", "1 1 E",
	}, res.Lines)
	assert.False(t, res.Lost)
	assert.Equal(t, grid.Position{X: 1, Y: 1, Heading: grid.East}, d.Grid().Robot())

	// place: invocation, step, outcome; move: invocation, 8 steps, outcome
	kinds := audit.kinds()
	require.Len(t, kinds, 3+10)
	assert.Equal(t, "invocation", kinds[3])
	assert.Equal(t, "outcome", kinds[len(kinds)-1])
	assert.Equal(t, "RFRFRFRF", audit.events[3].Value)
	assert.Equal(t, "1 1 E", audit.events[len(audit.events)-1].Value)
}

func TestDispatcher_MoveForward(t *testing.T) {
	d, _ := newDispatcher(t, 6, 4)
	d.Handle(context.Background(), "c 0 0 N")

	res := d.Handle(context.Background(), "m F")

	assert.Equal(t, []string{"0 1 N"}, res.Lines)
	assert.Equal(t, grid.Position{X: 0, Y: 1, Heading: grid.North}, d.Grid().Robot())
}

func TestDispatcher_MoveLostStopsBatch(t *testing.T) {
	d, audit := newDispatcher(t, 6, 4)
	d.Handle(context.Background(), "c 5 3 N")

	res := d.Handle(context.Background(), "m FRF")

	assert.True(t, res.Lost)
	assert.Equal(t, []string{"5 4 N LOST"}, res.Lines)
	assert.Equal(t, grid.Position{X: 5, Y: 3, Heading: grid.North}, d.Grid().Robot())

	steps := audit.values("step")
	assert.Equal(t, []string{"5 3 N", "5 4 N LOST"}, steps)
	assert.Equal(t, "5 4 N LOST", audit.values("outcome")[1])
}

func TestDispatcher_MoveInvalidCharacters(t *testing.T) {
	d, audit := newDispatcher(t, 6, 4)

	res := d.Handle(context.Background(), "m FxR")

	assert.Equal(t, []string{"0 1 N", `invalid step: "x"`, "0 1 E"}, res.Lines)
	assert.Equal(t, res.Lines, audit.values("step"))
	assert.Equal(t, []string{"0 1 E"}, audit.values("outcome"))
}

func TestDispatcher_MoveParseErrors(t *testing.T) {
	for _, raw := range []string{"m", "m FF LL", "m " + strings.Repeat("F", 101)} {
		d, audit := newDispatcher(t, 6, 4)
		res := d.Handle(context.Background(), raw)

		require.Len(t, res.Lines, 1)
		assert.Equal(t, []string{"invocation", "outcome"}, audit.kinds())
		assert.Equal(t, grid.Position{Heading: grid.North}, d.Grid().Robot())
	}

	d, _ := newDispatcher(t, 6, 4)
	assert.Contains(t, d.Handle(context.Background(), "m").Lines[0], "missing arguments")
	assert.Contains(t, d.Handle(context.Background(), "m "+strings.Repeat("L", 101)).Lines[0], "too many instructions")
}

func TestDispatcher_MoveMaxLength(t *testing.T) {
	d, audit := newDispatcher(t, 6, 4)

	res := d.Handle(context.Background(), "m "+strings.Repeat("L", 100))

	assert.Len(t, res.Lines, 100)
	assert.Len(t, audit.values("step"), 100)
	assert.Equal(t, grid.North, d.Grid().Robot().Heading)
}

func TestDispatcher_AuditFailureKeepsResults(t *testing.T) {
	g, err := grid.New(6, 4)
	require.NoError(t, err)
	audit := &fakeAudit{fail: errors.New("disk full")}
	tl := logging.NewTestLogger()
	d := New(g, audit, WithLogger(tl.Logger))

	res := d.Handle(context.Background(), "c 1 1 S")

	assert.Equal(t, []string{"1 1 S"}, res.Lines)
	tl.AssertLogged(t, zapcore.WarnLevel, "audit write failed")
}

func TestDispatcher_NilAudit(t *testing.T) {
	g, err := grid.New(6, 4)
	require.NoError(t, err)
	d := New(g, nil)

	res := d.Handle(context.Background(), "m FFF")
	assert.Equal(t, []string{"0 1 N", "0 2 N", "0 3 N"}, res.Lines)
	assert.Empty(t, res.InvocationID)
}

func TestDispatcher_Clock(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d, audit := newDispatcher(t, 6, 4, WithClock(func() time.Time { return at }))

	d.Handle(context.Background(), "c 0 0 E")

	for _, e := range audit.events {
		assert.Equal(t, at, e.At)
	}
}

func TestDispatcher_Spans(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	d, _ := newDispatcher(t, 6, 4, WithTracer(tt.Tracer("test")))

	d.Handle(context.Background(), "c 5 3 N")
	d.Handle(context.Background(), "m F")
	d.Handle(context.Background(), "h")

	tt.AssertSpanExists(t, "dispatch.place")
	tt.AssertSpanAttribute(t, "dispatch.place", "command.signature", "3 5 N")
	tt.AssertSpanAttribute(t, "dispatch.move", "lost", true)
	tt.AssertSpanAttribute(t, "dispatch.help", "results", int64(3))
}

func TestDispatcher_StepsLoggedAtTrace(t *testing.T) {
	tl := logging.NewTestLogger()
	d, _ := newDispatcher(t, 6, 4, WithLogger(tl.Logger))

	d.Handle(context.Background(), "m FR")

	entries := tl.FilterMessage("step applied").All()
	require.Len(t, entries, 2)
	assert.Equal(t, logging.TraceLevel, entries[0].Level)
	tl.AssertField(t, "step applied", "invocation.id", "inv-1")
	assert.Equal(t, "dispatch", entries[0].LoggerName)
}
