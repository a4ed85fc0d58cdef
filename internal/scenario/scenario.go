// Package scenario loads TOML scenario files and replays them against a
// fresh grid, checking each instruction's results against expectations.
//
// A scenario file looks like:
//
//	name = "loop"
//	final = "1 1 E"
//
//	[grid]
//	width = 5
//	height = 3
//
//	[[step]]
//	instruction = "c 1 1 E"
//	expect = ["1 1 E"]
package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/fyrsmithlabs/gridwalker/internal/dispatch"
	"github.com/fyrsmithlabs/gridwalker/internal/grid"
	"github.com/fyrsmithlabs/gridwalker/internal/simulator"
)

// ErrInvalidScenario is returned for files that decode but cannot run.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is a named instruction sequence on a grid of fixed size.
type Scenario struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Grid        Size   `toml:"grid"`
	Steps       []Step `toml:"step"`
	// Final is the expected stored robot position after the last step, as
	// "x y o". Empty skips the check.
	Final string `toml:"final"`
}

// Size is the grid dimensions.
type Size struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Step is one instruction. A nil Expect skips the result check.
type Step struct {
	Instruction string   `toml:"instruction"`
	Expect      []string `toml:"expect"`
}

// Load reads and validates a scenario file. Unknown keys are rejected so
// typos do not silently disable checks.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates scenario TOML.
func Parse(data string) (*Scenario, error) {
	var s Scenario
	md, err := toml.Decode(data, &s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalidScenario, strings.Join(keys, ", "))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the grid size and that there is something to run.
func (s *Scenario) Validate() error {
	if s.Grid.Width <= 0 || s.Grid.Height <= 0 {
		return fmt.Errorf("%w: grid dimensions must be positive, got %dx%d", ErrInvalidScenario, s.Grid.Width, s.Grid.Height)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScenario)
	}
	return nil
}

// StepReport is the outcome of one replayed step.
type StepReport struct {
	Instruction string
	Expected    []string
	Got         []string
	Checked     bool
	Passed      bool
}

// Report is the outcome of a replay.
type Report struct {
	Name          string
	Steps         []StepReport
	FinalExpected string
	FinalGot      string
	Passed        bool
}

// Failures describes every failed check.
func (r Report) Failures() []string {
	var out []string
	for i, st := range r.Steps {
		if st.Checked && !st.Passed {
			out = append(out, fmt.Sprintf("step %d %q: want %q, got %q", i+1, st.Instruction, st.Expected, st.Got))
		}
	}
	if r.FinalExpected != "" && r.FinalExpected != r.FinalGot {
		out = append(out, fmt.Sprintf("final position: want %q, got %q", r.FinalExpected, r.FinalGot))
	}
	return out
}

// Replay runs the scenario on a new grid. log may be nil to skip auditing.
func (s *Scenario) Replay(ctx context.Context, log dispatch.AuditLog, opts ...dispatch.Option) (Report, error) {
	g, err := grid.New(s.Grid.Width, s.Grid.Height)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	sim := simulator.New(dispatch.New(g, log, opts...))

	rep := Report{Name: s.Name, FinalExpected: s.Final, Passed: true}
	for _, st := range s.Steps {
		got := sim.Handle(ctx, st.Instruction)
		sr := StepReport{
			Instruction: st.Instruction,
			Expected:    st.Expect,
			Got:         got,
			Checked:     st.Expect != nil,
			Passed:      true,
		}
		if sr.Checked && !slices.Equal(st.Expect, got) {
			sr.Passed = false
			rep.Passed = false
		}
		rep.Steps = append(rep.Steps, sr)
	}

	rep.FinalGot = sim.Robot().String()
	if s.Final != "" && s.Final != rep.FinalGot {
		rep.Passed = false
	}
	return rep, nil
}
