package editor

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/pixel-canvas/internal/codec"
	"github.com/annel0/pixel-canvas/internal/storage"
	"github.com/annel0/pixel-canvas/internal/vec"
	"github.com/annel0/pixel-canvas/internal/world"
)

func repos(t *testing.T) map[string]storage.ProjectRepo {
	t.Helper()
	badgerRepo, err := storage.NewBadgerRepo(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerRepo.Close() })
	return map[string]storage.ProjectRepo{
		"memory": storage.NewMemoryRepo(),
		"badger": badgerRepo,
	}
}

// newEngineOn создаёт движок поверх общего хранилища; хранилище закрывает владелец
func newEngineOn(t *testing.T, repo storage.ProjectRepo) *Engine {
	t.Helper()
	e, err := New(testOptions(repo))
	require.NoError(t, err)
	t.Cleanup(func() { e.Assets().Wait() })
	return e
}

func TestSaveLoadProjectRoundTrip(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			src := newEngineOn(t, repo)
			_, ok := src.PlaceBlock(ctx, basic(0, 0, 2, 2, 0xFF8800))
			require.True(t, ok)
			_, ok = src.PlaceBlock(ctx, world.Block{X: 4, Y: 0, W: 3, H: 3, Kind: world.KindImage, ImageURL: "https://example.test/cat.png"})
			require.True(t, ok)
			_, ok = src.PlaceBlock(ctx, world.Block{X: 0, Y: 5, W: 1, H: 1, Kind: world.KindNested, TargetWorldID: "cellar", WorldName: "Подвал"})
			require.True(t, ok)
			src.SetCamera(codec.Camera{X: 12.5, Y: -3, Zoom: 2})
			src.SetTool("brush")

			require.NoError(t, src.SaveProject(ctx, "demo"+codec.ProjectExt))
			assert.Equal(t, "demo", src.ProjectName())

			meta, found, err := repo.Meta(ctx, "demo")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, 3, meta.Blocks)
			assert.Equal(t, "zstd", meta.Compression)
			assert.True(t, testNow.Equal(meta.UpdatedAt))

			dst := newEngineOn(t, repo)
			events := recordEvents(t, dst, EventProjectLoaded)
			require.NoError(t, dst.LoadProject(ctx, "demo"))
			assert.Equal(t, []string{EventProjectLoaded}, *events)

			assert.Equal(t, 3, dst.Store().Len())
			assert.Equal(t, codec.Camera{X: 12.5, Y: -3, Zoom: 2}, dst.Camera())
			assert.Equal(t, "brush", dst.Tool())
			assert.Equal(t, "demo", dst.ProjectName())
			assert.False(t, dst.History().CanUndo())

			b, found := dst.Store().GetAt(0.5, 0.5)
			require.True(t, found)
			assert.Equal(t, world.Color(0xFF8800), b.Color)
			assert.Equal(t, "tester", b.Author)
			assert.Equal(t, testNow.Unix(), b.CreatedAt)

			img, found := dst.Store().GetAt(5, 1)
			require.True(t, found)
			assert.Equal(t, "https://example.test/cat.png", img.ImageURL)

			portal, found := dst.Store().GetAt(0.5, 5.5)
			require.True(t, found)
			assert.Equal(t, "cellar", portal.TargetWorldID)
			assert.Equal(t, "Подвал", portal.WorldName)
		})
	}
}

func TestSaveProjectKeepsCoordinatesExact(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepo()
	src := newEngineOn(t, repo)

	_, ok := src.PlaceBlock(ctx, basic(3_000_000_000, 0, 1, 1, 0x123456))
	assert.False(t, ok, "x вне i32 не сохранится без искажения")
	_, ok = src.PlaceBlock(ctx, basic(0, math.MaxInt32, 1, 1, 0x123456))
	assert.False(t, ok, "нижний край вне i32")
	assert.Equal(t, 0, src.Store().Len())

	_, ok = src.PlaceBlock(ctx, basic(math.MaxInt32-2, math.MinInt32, 2, 1, 0x654321))
	require.True(t, ok)
	require.NoError(t, src.SaveProject(ctx, "edge"))

	dst := newEngineOn(t, repo)
	require.NoError(t, dst.LoadProject(ctx, "edge"))
	all := dst.Store().All()
	require.Len(t, all, 1)
	assert.Equal(t, math.MaxInt32-2, all[0].X)
	assert.Equal(t, math.MinInt32, all[0].Y)
}

func TestLoadProjectFailuresKeepWorld(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	_, ok := e.PlaceBlock(ctx, basic(0, 0, 1, 1, 0x123456))
	require.True(t, ok)
	failed := recordEvents(t, e, EventLoadFailed)

	err := e.LoadProjectData(ctx, []byte("{not json"))
	assert.ErrorIs(t, err, codec.ErrBadEnvelope)

	data, _, err := e.EncodeProject()
	require.NoError(t, err)
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &env))
	env["checksum"] = "0000000000000000"
	corrupt, err := json.Marshal(env)
	require.NoError(t, err)
	assert.ErrorIs(t, e.LoadProjectData(ctx, corrupt), codec.ErrChecksumMismatch)

	err = e.LoadProject(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.Equal(t, 1, e.Store().Len())
	assert.True(t, e.History().CanUndo())
	assert.Len(t, *failed, 3)
}

func TestLoadProjectDataResetsHistoryAndSelection(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	b, _ := e.PlaceBlock(ctx, basic(0, 0, 1, 1, 0))
	data, blocks, err := e.EncodeProject()
	require.NoError(t, err)
	assert.Equal(t, 1, blocks)

	e.Selection().SelectIDs([]string{b.ID})
	require.True(t, e.Lift(ctx))

	require.NoError(t, e.LoadProjectData(ctx, data))
	assert.False(t, e.Selection().IsLifted())
	assert.Empty(t, e.Selection().Selected())
	assert.False(t, e.History().CanUndo())
	assert.Equal(t, 1, e.Store().Len())
}

func TestNestedWorlds(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepo()
	e := newEngineOn(t, repo)
	opened := recordEvents(t, e, EventWorldOpened, EventWorldClosed)

	plain, _ := e.PlaceBlock(ctx, basic(5, 5, 1, 1, 0))
	portal, ok := e.PlaceBlock(ctx, world.Block{X: 0, Y: 0, W: 2, H: 2, Kind: world.KindNested, TargetWorldID: "cellar", WorldName: "Подвал"})
	require.True(t, ok)

	assert.ErrorIs(t, e.OpenWorld(ctx, plain.ID), ErrNotNested)
	assert.ErrorIs(t, e.CloseWorld(ctx), ErrAtRoot)

	require.NoError(t, e.OpenWorld(ctx, portal.ID))
	assert.Equal(t, []string{"", "cellar"}, e.WorldPath())
	id, name := e.CurrentWorld()
	assert.Equal(t, "cellar", id)
	assert.Equal(t, "Подвал", name)
	assert.Equal(t, 0, e.Store().Len())
	assert.False(t, e.History().CanUndo(), "у вложенного мира своя история")

	inner, ok := e.PlaceBlock(ctx, basic(1, 1, 1, 1, 0xABCDEF))
	require.True(t, ok)

	// Сохранение из вложенного мира пишет корень и снимок текущего мира
	require.NoError(t, e.SaveProject(ctx, "nested"))
	meta, _, err := repo.Meta(ctx, "nested")
	require.NoError(t, err)
	assert.Equal(t, 2, meta.Blocks)

	require.NoError(t, e.CloseWorld(ctx))
	assert.Equal(t, []string{""}, e.WorldPath())
	assert.Equal(t, 2, e.Store().Len())
	assert.Equal(t, "place-block", e.History().UndoLabel(), "история родителя восстановлена")

	snapshot, found, err := repo.LoadWorld(ctx, "cellar")
	require.NoError(t, err)
	require.True(t, found)
	blocks, err := world.ParseBlocksJSON(snapshot)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, inner.ID, blocks[0].ID)

	require.NoError(t, e.OpenWorld(ctx, portal.ID))
	got, found := e.Store().GetByID(inner.ID)
	require.True(t, found)
	assert.Equal(t, world.Color(0xABCDEF), got.Color)
	require.NoError(t, e.CloseWorld(ctx))

	assert.Equal(t, []string{EventWorldOpened, EventWorldClosed, EventWorldOpened, EventWorldClosed}, *opened)
}

func TestNestedWorldCommitsLiftedSelection(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	portal, _ := e.PlaceBlock(ctx, world.Block{X: 0, Y: 0, W: 1, H: 1, Kind: world.KindNested, TargetWorldID: "w"})
	moving, _ := e.PlaceBlock(ctx, basic(3, 3, 1, 1, 0))
	e.Selection().SelectIDs([]string{moving.ID})
	require.True(t, e.Lift(ctx))
	require.True(t, e.MoveTo(ctx, vec.Vec2{X: 6, Y: 6}))

	require.NoError(t, e.OpenWorld(ctx, portal.ID))
	require.NoError(t, e.CloseWorld(ctx))

	_, found := e.Store().GetAt(6.5, 6.5)
	assert.True(t, found, "поднятое выделение опущено перед входом")
	assert.Equal(t, "move", e.History().UndoLabel())
}

func TestExportImportJSON(t *testing.T) {
	ctx := context.Background()
	src := newTestEngine(t)
	a, _ := src.PlaceBlock(ctx, basic(0, 0, 2, 2, 0x0000FF))
	_, _ = src.PlaceBlock(ctx, world.Block{X: 3, Y: 0, W: 1, H: 1, Kind: world.KindNested, TargetWorldID: "attic", WorldName: "Чердак"})

	data, err := src.ExportJSON()
	require.NoError(t, err)

	dst := newTestEngine(t)
	_, _ = dst.PlaceBlock(ctx, basic(50, 50, 1, 1, 0))
	require.NoError(t, dst.ImportJSON(ctx, data))
	assert.Equal(t, 2, dst.Store().Len())
	assert.False(t, dst.History().CanUndo())
	got, found := dst.Store().GetByID(a.ID)
	require.True(t, found)
	assert.Equal(t, a, got)

	assert.Error(t, dst.ImportJSON(ctx, []byte(`[{"id":"x","x":0,"y":0,"w":0,"h":1,"kind":"basic"}]`)))
	assert.Equal(t, 2, dst.Store().Len(), "некорректный дамп не трогает мир")
}
