package assets

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // регистрация декодера GIF
	_ "image/jpeg" // регистрация декодера JPEG
	_ "image/png"  // регистрация декодера PNG
	"io"
	"net/http"
	"time"
)

// DefaultMaxBytes предел размера загружаемой картинки
const DefaultMaxBytes = 16 << 20

// Texture декодированная картинка блока типа image
type Texture struct {
	URL    string
	Format string
	Width  int
	Height int
	Image  image.Image
}

// Fetcher загружает и декодирует картинку по URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Texture, error)
}

// FetcherFunc адаптер функции к Fetcher
type FetcherFunc func(ctx context.Context, url string) (*Texture, error)

// Fetch вызывает f
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Texture, error) { return f(ctx, url) }

// HTTPFetcher загружает картинки по HTTP(S)
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

// NewHTTPFetcher создаёт загрузчик с таймаутом запроса
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}, MaxBytes: DefaultMaxBytes}
}

// Fetch выполняет GET и декодирует тело как PNG, JPEG или GIF
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Texture, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}

	img, format, err := image.Decode(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	b := img.Bounds()
	return &Texture{URL: url, Format: format, Width: b.Dx(), Height: b.Dy(), Image: img}, nil
}
