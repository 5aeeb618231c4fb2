package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mesh-gallery-backend/internal/services"
)

func TestSelection_Toggle(t *testing.T) {
	sel := services.NewSelection()

	sel.Toggle("a")
	assert.True(t, sel.Has("a"))
	assert.Equal(t, 1, sel.Count())

	sel.Toggle("a")
	assert.False(t, sel.Has("a"))
	assert.Equal(t, 0, sel.Count())
}

func TestSelection_ToggleRect(t *testing.T) {
	sel := services.NewSelection()

	items := []services.ItemBounds{
		{ID: "a", Bounds: services.Rect{X: 0, Y: 0, W: 100, H: 100}},
		{ID: "b", Bounds: services.Rect{X: 120, Y: 0, W: 100, H: 100}},
		{ID: "c", Bounds: services.Rect{X: 500, Y: 500, W: 100, H: 100}},
	}

	// Drag across the first two items only.
	sel.ToggleRect(items, services.Rect{X: 50, Y: 50, W: 150, H: 20})
	assert.True(t, sel.Has("a"))
	assert.True(t, sel.Has("b"))
	assert.False(t, sel.Has("c"))

	// The same drag toggles them back off.
	sel.ToggleRect(items, services.Rect{X: 50, Y: 50, W: 150, H: 20})
	assert.Equal(t, 0, sel.Count())
}

func TestSelection_RectTouchingEdgeDoesNotSelect(t *testing.T) {
	sel := services.NewSelection()

	items := []services.ItemBounds{
		{ID: "a", Bounds: services.Rect{X: 100, Y: 0, W: 50, H: 50}},
	}

	// Rectangles that only share an edge do not intersect.
	sel.ToggleRect(items, services.Rect{X: 0, Y: 0, W: 100, H: 50})
	assert.False(t, sel.Has("a"))
}

func TestSelection_Clear(t *testing.T) {
	sel := services.NewSelection()
	sel.Toggle("a")
	sel.Toggle("b")

	sel.Clear()
	assert.Equal(t, 0, sel.Count())
	assert.Empty(t, sel.IDs())
}
