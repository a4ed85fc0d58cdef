package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/gridwalker/internal/audit"
	"github.com/fyrsmithlabs/gridwalker/internal/dispatch"
	"github.com/fyrsmithlabs/gridwalker/internal/grid"
	"github.com/fyrsmithlabs/gridwalker/internal/simulator"
)

func newSimulator(t *testing.T, width, height int) *simulator.Service {
	t.Helper()
	g, err := grid.New(width, height)
	require.NoError(t, err)
	store := audit.NewMemoryStore()
	return simulator.New(dispatch.New(g, audit.NewRecorder([]audit.Sink{store})), simulator.WithHistory(store))
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func query(t *testing.T, s *Server, q string, vars map[string]any) gqlResponse {
	t.Helper()
	body, err := json.Marshal(map[string]any{"query": q, "variables": vars})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp gqlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestParseSchema(t *testing.T) {
	_, err := ParseSchema(newSimulator(t, 2, 2))
	require.NoError(t, err)
}

func TestMutation_Command(t *testing.T) {
	sim := newSimulator(t, 5, 3)
	s, err := NewServer(sim, nil, nil)
	require.NoError(t, err)

	const q = `mutation($a: String) { command(args: $a) }`

	resp := query(t, s, q, map[string]any{"a": "c 1 1 E"})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"command": ["1 1 E"]}`, string(resp.Data))

	resp = query(t, s, q, map[string]any{"a": "m RFRFRFRF"})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"command": ["1 1 S","1 0 S","1 0 W","0 0 W","0 0 N","0 1 N","0 1 E","1 1 E"]}`, string(resp.Data))
}

func TestMutation_CommandMatchesHandle(t *testing.T) {
	viaGraphQL := newSimulator(t, 6, 4)
	direct := newSimulator(t, 6, 4)
	s, err := NewServer(viaGraphQL, nil, nil)
	require.NoError(t, err)

	for _, raw := range []string{"", "h", "zz", "c 5 3 N", "m FRF", "c a b N", "m FQ"} {
		resp := query(t, s, `mutation($a: String) { command(args: $a) }`, map[string]any{"a": raw})
		require.Empty(t, resp.Errors)

		var data struct{ Command []string }
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		assert.Equal(t, direct.Handle(context.Background(), raw), data.Command, "instruction %q", raw)
	}
}

func TestMutation_CommandWithoutArgs(t *testing.T) {
	s, err := NewServer(newSimulator(t, 2, 2), nil, nil)
	require.NoError(t, err)

	resp := query(t, s, `mutation { command }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"command": ["`+dispatch.NoResults+`"]}`, string(resp.Data))
}

func TestMutation_CommandsRunInDocumentOrder(t *testing.T) {
	const doc = `mutation {
		a: command(args: "c 2 2 N")
		b: command(args: "m F")
		c: command(args: "m R")
	}`

	for i := 0; i < 50; i++ {
		sim := newSimulator(t, 6, 4)
		s, err := NewServer(sim, nil, nil)
		require.NoError(t, err)

		resp := query(t, s, doc, nil)
		require.Empty(t, resp.Errors)
		assert.JSONEq(t, `{"a": ["2 2 N"], "b": ["2 3 N"], "c": ["2 3 E"]}`, string(resp.Data))
		assert.Equal(t, "2 3 E", sim.Robot().String())
	}
}

func TestQuery_CommandIsNotAQueryField(t *testing.T) {
	sim := newSimulator(t, 6, 4)
	s, err := NewServer(sim, nil, nil)
	require.NoError(t, err)

	resp := query(t, s, `{ command(args: "c 1 1 E") }`, nil)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, "0 0 N", sim.Robot().String(), "a rejected document must not move the robot")
}

func TestQuery_Robot(t *testing.T) {
	sim := newSimulator(t, 3, 2)
	sim.Handle(context.Background(), "c 1 1 W")
	s, err := NewServer(sim, nil, nil)
	require.NoError(t, err)

	resp := query(t, s, `{ robot { x y heading width height grid } }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"robot": {"x": 1, "y": 1, "heading": "W", "width": 3, "height": 2, "grid": ". R .\n. . .\n"}}`, string(resp.Data))
}

func TestQuery_Invocations(t *testing.T) {
	sim := newSimulator(t, 6, 4)
	ctx := context.Background()
	sim.Handle(ctx, "c 0 0 N")
	sim.Handle(ctx, "m FF")
	s, err := NewServer(sim, nil, nil)
	require.NoError(t, err)

	resp := query(t, s, `{ invocations(limit: 5) { id type instruction createdAt steps { result } outcome { result } } }`, nil)
	require.Empty(t, resp.Errors)

	var data struct {
		Invocations []struct {
			ID          string
			Type        string
			Instruction string
			CreatedAt   string
			Steps       []struct{ Result string }
			Outcome     *struct{ Result string }
		}
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Len(t, data.Invocations, 2)

	first := data.Invocations[0]
	assert.Equal(t, "m", first.Type)
	assert.Equal(t, "FF", first.Instruction)
	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, first.CreatedAt)
	require.Len(t, first.Steps, 2)
	assert.Equal(t, "0 2 N", first.Steps[1].Result)
	require.NotNil(t, first.Outcome)
	assert.Equal(t, "0 2 N", first.Outcome.Result)
}

type brokenHistory struct{ *simulator.Service }

func (brokenHistory) History(context.Context, int) ([]audit.Invocation, error) {
	return nil, errors.New("store offline")
}

func TestQuery_InvocationsError(t *testing.T) {
	s, err := NewServer(brokenHistory{newSimulator(t, 2, 2)}, nil, nil)
	require.NoError(t, err)

	resp := query(t, s, `{ invocations { id } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "store offline")
}

func TestQuery_Help(t *testing.T) {
	s, err := NewServer(newSimulator(t, 2, 2), nil, nil)
	require.NoError(t, err)

	resp := query(t, s, `{ help }`, nil)
	require.Empty(t, resp.Errors)

	var data struct{ Help []string }
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, []string{
		"h help usage: h",
		"c place robot usage: c x y o",
		"m move robot usage: m [LRF]...",
	}, data.Help)
}

func TestNewServer_NilSimulator(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)
}
