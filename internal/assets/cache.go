package assets

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/annel0/pixel-canvas/internal/logging"
)

// ErrLoadFailed предыдущая загрузка URL завершилась ошибкой
var ErrLoadFailed = errors.New("asset load failed")

// Metrics счётчики кеша
type Metrics struct {
	Requests int64 `json:"requests"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Loads    int64 `json:"loads"`
	Failures int64 `json:"failures"`
	Pending  int   `json:"pending"`
	Cached   int   `json:"cached"`
}

// HitRatio доля попаданий
func (m Metrics) HitRatio() float64 {
	if m.Requests == 0 {
		return 0
	}
	return float64(m.Hits) / float64(m.Requests)
}

// Cache кеш текстур по URL. Одновременные запросы одного URL выполняют одну загрузку.
// Загрузки не отменяются: если блок удалён до окончания загрузки, текстура всё равно
// попадает в кеш и просто не используется.
type Cache struct {
	fetcher Fetcher
	logger  *logging.Logger
	timeout time.Duration
	onLoad  func(url string)

	group singleflight.Group
	wg    sync.WaitGroup

	mu       sync.RWMutex
	textures map[string]*Texture
	failed   map[string]error
	pending  map[string]struct{}

	requests atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
	loads    atomic.Int64
	failures atomic.Int64
}

// Options настройки кеша
type Options struct {
	Timeout time.Duration    // Таймаут одной загрузки, 0 - без таймаута
	OnLoad  func(url string) // Вызывается из горутины загрузки после успешной загрузки
	Logger  *logging.Logger
}

// NewCache создаёт кеш поверх fetcher
func NewCache(fetcher Fetcher, opts Options) *Cache {
	return &Cache{
		fetcher:  fetcher,
		logger:   logging.OrNop(opts.Logger),
		timeout:  opts.Timeout,
		onLoad:   opts.OnLoad,
		textures: make(map[string]*Texture),
		failed:   make(map[string]error),
		pending:  make(map[string]struct{}),
	}
}

// GetTexture возвращает текстуру из кеша. При промахе запускает фоновую загрузку
// и возвращает false; отрисовка подхватит текстуру в следующем кадре.
func (c *Cache) GetTexture(url string) (*Texture, bool) {
	c.requests.Add(1)
	c.mu.RLock()
	tex, ok := c.textures[url]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return tex, true
	}
	c.misses.Add(1)
	c.Request(url)
	return nil, false
}

// Request запускает фоновую загрузку, если URL не в кеше, не загружается и не падал
func (c *Cache) Request(url string) {
	if url == "" {
		return
	}
	c.mu.Lock()
	_, cached := c.textures[url]
	_, failed := c.failed[url]
	_, pending := c.pending[url]
	if cached || failed || pending {
		c.mu.Unlock()
		return
	}
	c.pending[url] = struct{}{}
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_, _ = c.fetch(url)
	}()
}

// Load загружает текстуру и ждёт результата. Отмена ctx прекращает ожидание,
// но не саму загрузку.
func (c *Cache) Load(ctx context.Context, url string) (*Texture, error) {
	c.mu.RLock()
	tex, ok := c.textures[url]
	c.mu.RUnlock()
	if ok {
		return tex, nil
	}

	c.mu.Lock()
	c.pending[url] = struct{}{}
	c.mu.Unlock()

	ch := c.group.DoChan(url, func() (interface{}, error) {
		return c.doFetch(url)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Texture), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) fetch(url string) (*Texture, error) {
	v, err, _ := c.group.Do(url, func() (interface{}, error) {
		return c.doFetch(url)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Texture), nil
}

func (c *Cache) doFetch(url string) (*Texture, error) {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.loads.Add(1)
	tex, err := c.fetcher.Fetch(ctx, url)

	c.mu.Lock()
	delete(c.pending, url)
	if err != nil {
		c.failed[url] = err
	} else {
		c.textures[url] = tex
		delete(c.failed, url)
	}
	c.mu.Unlock()

	if err != nil {
		c.failures.Add(1)
		c.logger.Warn("не удалось загрузить %s: %v", url, err)
		return nil, errors.Join(ErrLoadFailed, err)
	}
	c.logger.Debug("загружена текстура %s (%dx%d)", url, tex.Width, tex.Height)
	if c.onLoad != nil {
		c.onLoad(url)
	}
	return tex, nil
}

// LastError ошибка последней загрузки URL или nil
func (c *Cache) LastError(url string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failed[url]
}

// Invalidate удаляет URL из кеша и списка ошибок, следующий запрос загрузит его заново
func (c *Cache) Invalidate(url string) {
	c.mu.Lock()
	delete(c.textures, url)
	delete(c.failed, url)
	c.mu.Unlock()
}

// IsPending true, пока URL загружается
func (c *Cache) IsPending(url string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.pending[url]
	return ok
}

// Wait ждёт завершения фоновых загрузок
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Metrics снимок счётчиков
func (c *Cache) Metrics() Metrics {
	c.mu.RLock()
	pending, cached := len(c.pending), len(c.textures)
	c.mu.RUnlock()
	return Metrics{
		Requests: c.requests.Load(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Loads:    c.loads.Load(),
		Failures: c.failures.Load(),
		Pending:  pending,
		Cached:   cached,
	}
}
