package world

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreJSON_RoundTrip(t *testing.T) {
	s := NewSpatialStore(16)
	s.Add(testBlock("a", 0, 0, 4, 4))
	s.Add(Block{ID: "img", X: 10, Y: 10, W: 8, H: 8, Kind: KindImage, ImageURL: "https://example.com/cat.png", Author: "Ёжик"})
	s.Add(Block{ID: "portal", X: -40, Y: 3, W: 2, H: 2, Kind: KindNested, TargetWorldID: "w-2", WorldName: "Подвал"})

	data, err := s.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"nested"`)

	loaded, err := LoadJSON(data, 32)
	require.NoError(t, err)
	assert.Equal(t, s.All(), loaded.All())
}

func TestStoreJSON_FailuresLeaveStoreUntouched(t *testing.T) {
	cases := map[string]struct {
		input  string
		reason error
	}{
		"пустой вход":        {"", ErrMalformedJSON},
		"битый json":         {`[{"id":"x",`, ErrMalformedJSON},
		"не массив":          {`{"id":"x"}`, ErrSchemaViolation},
		"нулевая ширина":     {`[{"id":"x","x":0,"y":0,"w":0,"h":1}]`, ErrSchemaViolation},
		"неизвестный тип":    {`[{"id":"x","x":0,"y":0,"w":1,"h":1,"kind":"laser"}]`, ErrSchemaViolation},
		"дробная координата": {`[{"id":"x","x":0.5,"y":0,"w":1,"h":1}]`, ErrSchemaViolation},
		"x вне i32":          {`[{"id":"x","x":3000000000,"y":0,"w":1,"h":1}]`, ErrSchemaViolation},
		"край вне i32":       {`[{"id":"x","x":2147483647,"y":0,"w":2,"h":1}]`, ErrInvalidBlock},
		"дубликат id":        {`[{"id":"x","x":0,"y":0,"w":1,"h":1},{"id":"x","x":5,"y":5,"w":1,"h":1}]`, ErrInvalidBlock},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s := NewSpatialStore(16)
			s.Add(testBlock("keep", 1, 1, 2, 2))

			err := s.FromJSON([]byte(tc.input))
			require.Error(t, err)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.ErrorIs(t, err, tc.reason)

			assert.Equal(t, 1, s.Len(), "хранилище не должно измениться")
			_, ok := s.GetByID("keep")
			assert.True(t, ok)
		})
	}
}

func TestStoreJSON_EmptyArrayClears(t *testing.T) {
	s := NewSpatialStore(16)
	s.Add(testBlock("a", 0, 0, 1, 1))
	require.NoError(t, s.FromJSON([]byte(`[]`)))
	assert.Equal(t, 0, s.Len())
}
