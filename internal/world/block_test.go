package world

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindText(t *testing.T) {
	for _, k := range []Kind{KindBasic, KindImage, KindNested} {
		text, err := k.MarshalText()
		require.NoError(t, err)
		var back Kind
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, k, back)
	}
	_, err := Kind(9).MarshalText()
	assert.Error(t, err)
	_, err = ParseKind("laser")
	assert.Error(t, err)
}

func TestColorComponents(t *testing.T) {
	c := RGB(0x12, 0x34, 0x56)
	assert.Equal(t, Color(0x123456), c)
	r, g, b := c.Components()
	assert.Equal(t, []uint8{0x12, 0x34, 0x56}, []uint8{r, g, b})
}

func TestBlockExtra(t *testing.T) {
	img := Block{Kind: KindImage}.WithExtra("u")
	assert.Equal(t, "u", img.ImageURL)
	assert.Equal(t, "u", img.Extra())

	nested := Block{Kind: KindNested}.WithExtra("w1")
	assert.Equal(t, "w1", nested.TargetWorldID)
	assert.Equal(t, "", Block{Kind: KindBasic}.WithExtra("ignored").Extra())
}

func TestBlockValidate(t *testing.T) {
	assert.NoError(t, testBlock("a", 0, 0, 255, 1).Validate())
	assert.Error(t, testBlock("", 0, 0, 1, 1).Validate())
	assert.Error(t, testBlock("a", 0, 0, 256, 1).Validate())
	assert.Error(t, testBlock("a", 0, 0, 1, 0).Validate())
	bad := testBlock("a", 0, 0, 1, 1)
	bad.Color = 0x1000000
	assert.Error(t, bad.Validate())
}

func TestBlockValidate_CoordRange(t *testing.T) {
	assert.NoError(t, testBlock("a", math.MinInt32, math.MinInt32, 1, 1).Validate())
	assert.NoError(t, testBlock("a", math.MaxInt32-10, math.MaxInt32-255, 10, 255).Validate())

	assert.Error(t, testBlock("a", 3_000_000_000, 0, 1, 1).Validate())
	assert.Error(t, testBlock("a", 0, math.MinInt32-1, 1, 1).Validate())
	assert.Error(t, testBlock("a", math.MaxInt32, 0, 1, 1).Validate(), "правый край за пределами i32")
	assert.Error(t, testBlock("a", 0, math.MaxInt32-5, 1, 6).Validate(), "нижний край за пределами i32")

	assert.True(t, InCoordRange(-5, -5, 10, 10))
	assert.False(t, InCoordRange(0, 0, math.MaxInt32+1, 1))
}

func TestDeltaCaptureAndApply(t *testing.T) {
	b := Block{ID: "a", Color: RGB(1, 2, 3), Kind: KindImage, ImageURL: "old"}
	newColor := RGB(9, 9, 9)
	newURL := "new"
	next := Delta{Color: &newColor, ImageURL: &newURL}

	prev := next.Capture(b)
	changed := next.Apply(b)
	assert.Equal(t, newColor, changed.Color)
	assert.Equal(t, "new", changed.ImageURL)
	assert.Equal(t, b, prev.Apply(changed))
	assert.Nil(t, prev.WorldName)
	assert.True(t, Delta{}.IsEmpty())

	data, err := json.Marshal(next)
	require.NoError(t, err)
	assert.JSONEq(t, `{"color":592137,"imageUrl":"new"}`, string(data))
}
