package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound запись отсутствует
var ErrNotFound = errors.New("not found")

// ProjectMeta сведения о сохранённом проекте
type ProjectMeta struct {
	Name        string    `json:"name"`
	Blocks      int       `json:"blocks"`
	Size        int       `json:"size"`
	Compression string    `json:"compression"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectRepo хранилище файлов проектов и снимков вложенных миров.
// Проект хранится как готовый файл .pxw; снимок мира - как JSON-дамп блоков.
type ProjectRepo interface {
	// SaveProject сохраняет файл проекта и его метаданные атомарно.
	SaveProject(ctx context.Context, meta ProjectMeta, data []byte) error

	// LoadProject загружает файл проекта. false, если проекта нет.
	LoadProject(ctx context.Context, name string) ([]byte, bool, error)

	// Meta возвращает метаданные проекта.
	Meta(ctx context.Context, name string) (ProjectMeta, bool, error)

	// ListProjects метаданные всех проектов по возрастанию имени.
	ListProjects(ctx context.Context) ([]ProjectMeta, error)

	// DeleteProject удаляет проект. ErrNotFound, если проекта нет.
	DeleteProject(ctx context.Context, name string) error

	// SaveWorld сохраняет JSON-снимок вложенного мира.
	SaveWorld(ctx context.Context, worldID string, data []byte) error

	// LoadWorld загружает снимок мира. false, если снимка нет.
	LoadWorld(ctx context.Context, worldID string) ([]byte, bool, error)

	// ListWorlds id сохранённых миров по возрастанию.
	ListWorlds(ctx context.Context) ([]string, error)

	Close() error
}

const (
	projectPrefix = "project:"
	worldPrefix   = "world:"
	dataSuffix    = ":data"
	metaSuffix    = ":meta"
)

func projectDataKey(name string) []byte { return []byte(projectPrefix + name + dataSuffix) }
func projectMetaKey(name string) []byte { return []byte(projectPrefix + name + metaSuffix) }
func worldKey(id string) []byte         { return []byte(worldPrefix + id) }

func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("пустое имя %s", kind)
	}
	if strings.ContainsAny(name, ":\x00") {
		return fmt.Errorf("недопустимое имя %s %q", kind, name)
	}
	return nil
}
