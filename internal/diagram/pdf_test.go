package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPDF(t *testing.T) {
	l := Build(activatedSludgeItems(), activatedSludgeOptions())
	l.Title = "STEP Nord | Type de procédé : BOUES ACTIVEES\nMise à jour du 01/02/2024"

	pdf, err := RenderPDF(l)
	require.NoError(t, err)
	assert.True(t, len(pdf) > 100)
	assert.Equal(t, "%PDF-", string(pdf[:5]))
}

func TestRenderPDF_Empty(t *testing.T) {
	pdf, err := RenderPDF(Build(nil, Options{}))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(pdf[:5]))
}

func TestControlPoint(t *testing.T) {
	a := Arrow{Start: Point{0, 0}, End: Point{10, 0}, Curvature: 0.2}
	assert.Equal(t, Point{5, -2}, controlPoint(a))
	a.Curvature = 0
	assert.Equal(t, Point{5, 0}, controlPoint(a))
}

func TestHexRGB(t *testing.T) {
	r, g, b := hexRGB("#8B4513")
	assert.Equal(t, []int{0x8b, 0x45, 0x13}, []int{r, g, b})
	r, g, b = hexRGB("nope")
	assert.Equal(t, []int{0, 0, 0}, []int{r, g, b})
}
