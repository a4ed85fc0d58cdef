package grid

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("starts at origin facing north", func(t *testing.T) {
		g, err := New(6, 4)
		require.NoError(t, err)
		assert.Equal(t, Position{X: 0, Y: 0, Heading: North}, g.Robot())
		assert.True(t, g.Occupied(0, 0))
		assert.Equal(t, 6, g.Width())
		assert.Equal(t, 4, g.Height())
	})

	t.Run("rejects non-positive dimensions", func(t *testing.T) {
		for _, dims := range [][2]int{{0, 4}, {6, 0}, {-1, 3}} {
			_, err := New(dims[0], dims[1])
			assert.Error(t, err, "dims %v", dims)
		}
	})
}

func TestGrid_Place(t *testing.T) {
	t.Run("in bounds placements are stored exactly", func(t *testing.T) {
		g, err := New(6, 4)
		require.NoError(t, err)

		for x := 0; x < 6; x++ {
			for y := 0; y < 4; y++ {
				for _, h := range compass {
					got, err := g.Place(x, y, h)
					require.NoError(t, err)
					assert.Equal(t, Position{X: x, Y: y, Heading: h}, got)
					assert.Equal(t, got, g.Robot())
				}
			}
		}
	})

	t.Run("out of bounds placements keep previous position", func(t *testing.T) {
		g, err := New(6, 4)
		require.NoError(t, err)
		_, err = g.Place(2, 2, East)
		require.NoError(t, err)
		before := g.Robot()

		cases := [][2]int{{6, 0}, {0, 4}, {-1, 0}, {0, -1}, {100, 100}, {-5, 7}}
		for _, c := range cases {
			got, err := g.Place(c[0], c[1], South)

			var lost *LostError
			require.True(t, errors.As(err, &lost), "coords %v", c)
			assert.Equal(t, Position{X: c[0], Y: c[1], Heading: South}, lost.Attempted)
			assert.Equal(t, lost.Attempted, got)
			assert.Equal(t, before, g.Robot())
			assert.True(t, g.Occupied(before.X, before.Y))
		}
	})

	t.Run("lost error text", func(t *testing.T) {
		g, err := New(6, 4)
		require.NoError(t, err)
		_, err = g.Place(5, 4, North)
		require.Error(t, err)
		assert.Equal(t, "5 4 N LOST", err.Error())
	})

	t.Run("invalid heading", func(t *testing.T) {
		g, err := New(6, 4)
		require.NoError(t, err)
		_, err = g.Place(1, 1, Heading('Q'))
		assert.ErrorIs(t, err, ErrInvalidHeading)
		assert.Equal(t, Position{X: 0, Y: 0, Heading: North}, g.Robot())
	})

	t.Run("at most one occupied cell", func(t *testing.T) {
		g, err := New(3, 3)
		require.NoError(t, err)
		_, _ = g.Place(1, 1, North)
		_, _ = g.Place(2, 2, West)
		_, _ = g.Place(9, 9, West)

		count := 0
		for y := 0; y < 3; y++ {
			for x := 0; x < 3; x++ {
				if g.Occupied(x, y) {
					count++
				}
			}
		}
		assert.Equal(t, 1, count)
		assert.True(t, g.Occupied(2, 2))
	})
}

func TestGrid_Render(t *testing.T) {
	g, err := New(3, 2)
	require.NoError(t, err)
	_, err = g.Place(2, 1, North)
	require.NoError(t, err)

	assert.Equal(t, ". . R\n. . .\n", g.Render())
}

func TestPosition_JSON(t *testing.T) {
	data, err := json.Marshal(Position{X: 1, Y: 2, Heading: West})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1,"y":2,"heading":"W"}`, string(data))

	var p Position
	require.NoError(t, json.Unmarshal([]byte(`{"x":3,"y":0,"heading":"S"}`), &p))
	assert.Equal(t, Position{X: 3, Y: 0, Heading: South}, p)
}
