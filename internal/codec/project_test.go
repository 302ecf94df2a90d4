package codec

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/pixel-canvas/internal/world"
)

func TestProject_RoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZstd} {
		t.Run(string(c), func(t *testing.T) {
			doc := Document{
				Name:       "demo",
				Camera:     Camera{X: 12.5, Y: -3, Zoom: 2},
				Tool:       "marquee",
				UI:         UIState{ShowGrid: true, GridSize: 8},
				WorldNames: map[string]string{"world-42": "Подвал"},
				Pool:       samplePool(t),
			}

			data, err := EncodeProject(doc, c)
			require.NoError(t, err)

			var raw map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &raw))
			assert.Equal(t, string(c), raw["compression"])
			assert.EqualValues(t, 3, raw["blocks"])

			got, err := DecodeProject(data, nil)
			require.NoError(t, err)
			assert.Equal(t, doc.Name, got.Name)
			assert.Equal(t, doc.Camera, got.Camera)
			assert.Equal(t, doc.Tool, got.Tool)
			assert.Equal(t, doc.UI, got.UI)
			assert.Equal(t, doc.WorldNames, got.WorldNames)
			assert.Equal(t, doc.Pool.Entries(), got.Pool.Entries())
		})
	}
}

func TestProject_ChecksumMismatch(t *testing.T) {
	data, err := EncodeProject(Document{Pool: samplePool(t)}, CompressionNone)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	env.Checksum = "0"
	data, err = json.Marshal(env)
	require.NoError(t, err)

	_, err = DecodeProject(data, nil)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestProject_BadEnvelope(t *testing.T) {
	_, err := DecodeProject([]byte("{not json"), nil)
	assert.ErrorIs(t, err, ErrBadEnvelope)

	_, err = DecodeProject([]byte(`{"formatVersion":7}`), nil)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = DecodeProject([]byte(`{"formatVersion":1,"compression":"none","payload":"!!!"}`), nil)
	assert.ErrorIs(t, err, ErrBadEnvelope)

	_, err = DecodeProject([]byte(`{"formatVersion":1,"compression":"lz4","payload":""}`), nil)
	assert.ErrorIs(t, err, ErrBadEnvelope)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)

	c, err = ParseCompression("zstd")
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, c)

	_, err = ParseCompression("gzip")
	assert.Error(t, err)
}

func TestBlocksPoolBridge(t *testing.T) {
	blocks := []world.Block{
		{ID: "a", X: 1, Y: 2, W: 3, H: 4, Color: 0x123456, Kind: world.KindBasic, Author: "Зоя", CreatedAt: 10},
		{ID: "b", X: -8, Y: 0, W: 1, H: 1, Kind: world.KindImage, ImageURL: "https://img/x.png", CreatedAt: 11},
		{ID: "c", X: 5, Y: 5, W: 2, H: 2, Kind: world.KindNested, TargetWorldID: "w1", WorldName: "Чердак", CreatedAt: 12},
	}
	pool, err := PoolFromBlocks(blocks)
	require.NoError(t, err)
	assert.Equal(t, 3, pool.Live())

	got := BlocksFromPool(pool, map[string]string{"w1": "Чердак"})
	require.Len(t, got, 3)
	for i := range blocks {
		assert.NotEmpty(t, got[i].ID)
		assert.NotEqual(t, blocks[i].ID, got[i].ID, "id выдаются заново")
		got[i].ID = blocks[i].ID
	}
	assert.Equal(t, blocks, got)

	_, err = PoolFromBlocks([]world.Block{{ID: "x", W: 0, H: 1}})
	assert.Error(t, err)

	_, err = PoolFromBlocks([]world.Block{{ID: "x", W: 1, H: 1, CreatedAt: -1}})
	assert.Error(t, err)
}

func TestEntryFromBlock_CoordRange(t *testing.T) {
	edge := world.Block{ID: "e", X: math.MinInt32, Y: math.MaxInt32 - 1, W: 1, H: 1, CreatedAt: 1}
	entry, err := EntryFromBlock(edge)
	require.NoError(t, err)
	back := BlockFromEntry(entry)
	assert.Equal(t, edge.X, back.X)
	assert.Equal(t, edge.Y, back.Y)

	for _, b := range []world.Block{
		{ID: "far", X: 3_000_000_000, W: 1, H: 1, CreatedAt: 1},
		{ID: "neg", Y: math.MinInt32 - 1, W: 1, H: 1, CreatedAt: 1},
		{ID: "edge", X: math.MaxInt32 - 1, W: 2, H: 1, CreatedAt: 1},
	} {
		_, err := EntryFromBlock(b)
		assert.Error(t, err, b.ID)
		_, err = PoolFromBlocks([]world.Block{b})
		assert.Error(t, err, b.ID)
	}
}
