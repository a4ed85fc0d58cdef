// Package graphql exposes the simulator over a GraphQL endpoint.
package graphql

import (
	"context"
	"time"

	gql "github.com/graph-gophers/graphql-go"

	"github.com/fyrsmithlabs/gridwalker/internal/audit"
	"github.com/fyrsmithlabs/gridwalker/internal/simulator"
)

const schemaSDL = `
schema {
	query: Query
	mutation: Mutation
}

type Query {
	robot: Robot!
	invocations(limit: Int): [Invocation!]!
	help: [String!]!
}

# Mutation fields run one after another in document order.
type Mutation {
	# Runs one instruction and returns its result lines.
	command(args: String): [String!]!
}

type Robot {
	x: Int!
	y: Int!
	heading: String!
	width: Int!
	height: Int!
	grid: String!
}

type Invocation {
	id: ID!
	type: String!
	instruction: String!
	createdAt: String!
	steps: [Record!]!
	outcome: Record
}

type Record {
	result: String!
	createdAt: String!
}
`

// Simulator is the subset of the simulator the schema resolves against.
type Simulator interface {
	Handle(ctx context.Context, raw string) []string
	Snapshot() simulator.Snapshot
	Help() []string
	History(ctx context.Context, limit int) ([]audit.Invocation, error)
}

// ParseSchema builds the executable schema over sim.
func ParseSchema(sim Simulator) (*gql.Schema, error) {
	return gql.ParseSchema(schemaSDL, &rootResolver{sim: sim})
}

// rootResolver serves both Query and Mutation fields.
type rootResolver struct {
	sim Simulator
}

func (r *rootResolver) Command(ctx context.Context, args struct{ Args *string }) []string {
	raw := ""
	if args.Args != nil {
		raw = *args.Args
	}
	return r.sim.Handle(ctx, raw)
}

func (r *rootResolver) Robot() *robotResolver {
	return &robotResolver{snap: r.sim.Snapshot()}
}

func (r *rootResolver) Invocations(ctx context.Context, args struct{ Limit *int32 }) ([]*invocationResolver, error) {
	limit := 0
	if args.Limit != nil {
		limit = int(*args.Limit)
	}
	invs, err := r.sim.History(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]*invocationResolver, len(invs))
	for i := range invs {
		out[i] = &invocationResolver{inv: invs[i]}
	}
	return out, nil
}

func (r *rootResolver) Help() []string {
	return r.sim.Help()
}

type robotResolver struct {
	snap simulator.Snapshot
}

func (r *robotResolver) X() int32        { return int32(r.snap.Robot.X) }
func (r *robotResolver) Y() int32        { return int32(r.snap.Robot.Y) }
func (r *robotResolver) Heading() string { return r.snap.Robot.Heading.String() }
func (r *robotResolver) Width() int32    { return int32(r.snap.Width) }
func (r *robotResolver) Height() int32   { return int32(r.snap.Height) }
func (r *robotResolver) Grid() string    { return r.snap.Grid }

type invocationResolver struct {
	inv audit.Invocation
}

func (r *invocationResolver) ID() gql.ID          { return gql.ID(r.inv.ID) }
func (r *invocationResolver) Type() string        { return r.inv.Type }
func (r *invocationResolver) Instruction() string { return r.inv.Instruction }
func (r *invocationResolver) CreatedAt() string   { return formatTime(r.inv.CreatedAt) }

func (r *invocationResolver) Steps() []*recordResolver {
	out := make([]*recordResolver, len(r.inv.Steps))
	for i := range r.inv.Steps {
		out[i] = &recordResolver{rec: r.inv.Steps[i]}
	}
	return out
}

func (r *invocationResolver) Outcome() *recordResolver {
	if r.inv.Outcome == nil {
		return nil
	}
	return &recordResolver{rec: *r.inv.Outcome}
}

type recordResolver struct {
	rec audit.Record
}

func (r *recordResolver) Result() string    { return r.rec.Result }
func (r *recordResolver) CreatedAt() string { return formatTime(r.rec.CreatedAt) }

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
