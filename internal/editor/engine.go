package editor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/pixel-canvas/internal/assets"
	"github.com/annel0/pixel-canvas/internal/codec"
	"github.com/annel0/pixel-canvas/internal/config"
	"github.com/annel0/pixel-canvas/internal/eventbus"
	"github.com/annel0/pixel-canvas/internal/history"
	"github.com/annel0/pixel-canvas/internal/logging"
	"github.com/annel0/pixel-canvas/internal/selection"
	"github.com/annel0/pixel-canvas/internal/storage"
	"github.com/annel0/pixel-canvas/internal/vec"
	"github.com/annel0/pixel-canvas/internal/world"
)

// Options параметры движка редактора
type Options struct {
	ChunkSize      int
	HistoryFrames  int
	GridSize       int
	NudgeStep      int
	NudgeShiftStep int
	Compression    codec.Compression
	Author         string // Автор новых блоков

	Repo         storage.ProjectRepo // nil - хранилище в памяти
	Fetcher      assets.Fetcher      // nil - загрузка по HTTP
	AssetTimeout time.Duration
	Clipboard    selection.Clipboard // nil - буфер в памяти

	Registerer prometheus.Registerer // nil - метрики не регистрируются
	Namespace  string

	Logs *logging.LoggerManager // nil - без логов
	Now  func() time.Time
}

// OptionsFromConfig переносит настройки из файла конфигурации
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	compression, err := codec.ParseCompression(cfg.Storage.Compression)
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		ChunkSize:      cfg.Editor.GetChunkSize(),
		HistoryFrames:  cfg.Editor.GetHistoryFrames(),
		GridSize:       cfg.Editor.GetGridSize(),
		NudgeStep:      cfg.Editor.NudgeStep,
		NudgeShiftStep: cfg.Editor.NudgeShiftStep,
		Compression:    compression,
		AssetTimeout:   time.Duration(cfg.Assets.TimeoutSeconds) * time.Second,
		Namespace:      cfg.Metrics.Namespace,
	}
	if cfg.Assets.MaxBytes > 0 {
		f := assets.NewHTTPFetcher(opts.AssetTimeout)
		f.MaxBytes = cfg.Assets.MaxBytes
		opts.Fetcher = f
	}
	return opts, nil
}

// worldFrame сохранённое состояние родительского мира при входе во вложенный
type worldFrame struct {
	id       string
	name     string
	snapshot []byte
	history  *history.Engine
	sel      *selection.Engine
}

// Engine движок редактора: владеет шиной событий, хранилищем, историей,
// выделением и кешем текстур. Все правки интерфейса проходят через именованные
// команды и попадают в историю. Не потокобезопасен, кроме кеша текстур.
type Engine struct {
	opts       Options
	bus        eventbus.EventBus
	store      *world.SpatialStore
	history    *history.Engine
	sel        *selection.Engine
	assets     *assets.Cache
	repo       storage.ProjectRepo
	ownsRepo   bool
	metrics    *Metrics
	busMetrics *eventbus.MetricsExporter

	logger   *logging.Logger
	histLog  *logging.Logger
	selLog   *logging.Logger
	codecLog *logging.Logger

	projectName string
	camera      codec.Camera
	tool        string
	ui          codec.UIState
	worldNames  map[string]string

	worldID string
	stack   []worldFrame

	dirty        atomic.Bool
	lastVersion  uint64
	lastViewport vec.Rect
	rendered     bool

	subs []eventbus.Subscription
}

// New создаёт движок с пустым миром
func New(opts Options) (*Engine, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Compression == "" {
		opts.Compression = codec.CompressionNone
	}

	e := &Engine{
		opts:       opts,
		repo:       opts.Repo,
		logger:     logging.NewNopLogger(),
		worldNames: make(map[string]string),
		ui:         codec.UIState{ShowGrid: true, GridSize: opts.GridSize},
		camera:     codec.Camera{Zoom: 1},
	}
	if e.repo == nil {
		e.repo = storage.NewMemoryRepo()
		e.ownsRepo = true
	}

	var assetsLog, busLog *logging.Logger
	if lm := opts.Logs; lm != nil {
		e.logger = lm.Editor()
		e.histLog = lm.History()
		e.selLog = lm.Selection()
		e.codecLog = lm.Codec()
		assetsLog = lm.Assets()
		busLog = lm.MustGetLogger("eventbus")
	}

	var err error
	e.metrics, err = NewMetrics(opts.Registerer, opts.Namespace)
	if err != nil {
		return nil, fmt.Errorf("register editor metrics: %w", err)
	}

	e.bus = eventbus.NewMemoryBus(busLog)
	if opts.Registerer != nil {
		e.busMetrics, err = eventbus.NewMetricsExporter(e.bus, opts.Registerer, opts.Namespace)
		if err != nil {
			return nil, fmt.Errorf("register eventbus metrics: %w", err)
		}
	}

	// Любое событие делает кадр грязным
	sub, err := e.bus.Subscribe(context.Background(), eventbus.Filter{}, func(context.Context, *eventbus.Envelope) {
		e.dirty.Store(true)
	})
	if err != nil {
		return nil, err
	}
	e.subs = append(e.subs, sub)
	if busLog != nil {
		if sub, err := eventbus.StartLoggingListener(e.bus, busLog); err == nil {
			e.subs = append(e.subs, sub)
		}
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = assets.NewHTTPFetcher(opts.AssetTimeout)
	}
	// Загрузка завершается в своей горутине, поэтому только атомарный флаг
	e.assets = assets.NewCache(fetcher, assets.Options{
		Timeout: opts.AssetTimeout,
		Logger:  assetsLog,
		OnLoad:  func(string) { e.dirty.Store(true) },
	})

	e.store = world.NewSpatialStore(opts.ChunkSize)
	e.history, e.sel = e.newEditing()
	e.dirty.Store(true)
	return e, nil
}

func (e *Engine) newEditing() (*history.Engine, *selection.Engine) {
	h := history.NewEngine(e.store, e.opts.HistoryFrames, e.histLog)
	s := selection.NewEngine(e.store, h, e.opts.Clipboard, selection.Options{
		GridSize:       e.opts.GridSize,
		NudgeStep:      e.opts.NudgeStep,
		NudgeShiftStep: e.opts.NudgeShiftStep,
		Now:            e.opts.Now,
	}, e.selLog)
	return h, s
}

// Close отписывает внутренних слушателей и ждёт фоновых загрузок.
// Хранилище из Options.Repo закрывает его владелец.
func (e *Engine) Close() error {
	for _, sub := range e.subs {
		sub.Unsubscribe()
	}
	e.subs = nil
	e.assets.Wait()
	if e.ownsRepo {
		return e.repo.Close()
	}
	return nil
}

// Bus шина событий редактора. Подписчики вызываются синхронно.
func (e *Engine) Bus() eventbus.EventBus { return e.bus }

// Store хранилище текущего мира. Только для чтения: изменения идут через команды.
func (e *Engine) Store() *world.SpatialStore { return e.store }

// History история текущего мира
func (e *Engine) History() *history.Engine { return e.history }

// Selection выделение текущего мира
func (e *Engine) Selection() *selection.Engine { return e.sel }

// Assets кеш текстур
func (e *Engine) Assets() *assets.Cache { return e.assets }

// Repo хранилище проектов
func (e *Engine) Repo() storage.ProjectRepo { return e.repo }

// SetCamera запоминает положение вида для сохранения в проект
func (e *Engine) SetCamera(c codec.Camera) { e.camera = c }

// Camera текущий вид
func (e *Engine) Camera() codec.Camera { return e.camera }

// SetTool запоминает активный инструмент
func (e *Engine) SetTool(tool string) { e.tool = tool }

// Tool активный инструмент
func (e *Engine) Tool() string { return e.tool }

// SetUI запоминает состояние интерфейса
func (e *Engine) SetUI(ui codec.UIState) {
	e.ui = ui
	e.dirty.Store(true)
}

// UI состояние интерфейса
func (e *Engine) UI() codec.UIState { return e.ui }

// ProjectName имя открытого проекта
func (e *Engine) ProjectName() string { return e.projectName }

func (e *Engine) publish(ctx context.Context, source, eventType string, payload interface{}) {
	ev, err := eventbus.NewEnvelope(source, eventType, payload)
	if err != nil {
		e.logger.Error("событие %s: %v", eventType, err)
		return
	}
	if err := e.bus.Publish(ctx, ev); err != nil {
		e.logger.Warn("публикация %s: %v", eventType, err)
		// Кадр всё равно должен перерисоваться
		e.dirty.Store(true)
	}
}

func (e *Engine) syncGauges() {
	e.metrics.blocks.Set(float64(e.store.Len()))
	e.metrics.historyFrames.Set(float64(len(e.history.Frames())))
	e.metrics.assetsCached.Set(float64(e.assets.Metrics().Cached))
	if e.busMetrics != nil {
		e.busMetrics.Sync()
	}
}

func warningStrings(ws []history.Warning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.String()
	}
	return out
}
