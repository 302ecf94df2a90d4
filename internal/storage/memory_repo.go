package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryRepo реализует ProjectRepo в памяти.
// Используется в тестах и когда каталог данных не задан.
// ВНИМАНИЕ: данные теряются при завершении процесса!
type MemoryRepo struct {
	mu       sync.RWMutex
	projects map[string][]byte
	metas    map[string]ProjectMeta
	worlds   map[string][]byte
}

// NewMemoryRepo создаёт пустое хранилище в памяти
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		projects: make(map[string][]byte),
		metas:    make(map[string]ProjectMeta),
		worlds:   make(map[string][]byte),
	}
}

func (r *MemoryRepo) SaveProject(ctx context.Context, meta ProjectMeta, data []byte) error {
	if err := validateName("проекта", meta.Name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	meta.Size = len(data)
	r.projects[meta.Name] = append([]byte(nil), data...)
	r.metas[meta.Name] = meta
	return nil
}

func (r *MemoryRepo) LoadProject(ctx context.Context, name string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.projects[name]
	return append([]byte(nil), data...), ok, nil
}

func (r *MemoryRepo) Meta(ctx context.Context, name string) (ProjectMeta, bool, error) {
	if err := ctx.Err(); err != nil {
		return ProjectMeta{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.metas[name]
	return meta, ok, nil
}

func (r *MemoryRepo) ListProjects(ctx context.Context) ([]ProjectMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	metas := make([]ProjectMeta, 0, len(r.metas))
	for _, m := range r.metas {
		metas = append(metas, m)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas, nil
}

func (r *MemoryRepo) DeleteProject(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.metas[name]; !ok {
		return fmt.Errorf("проект %s: %w", name, ErrNotFound)
	}
	delete(r.projects, name)
	delete(r.metas, name)
	return nil
}

func (r *MemoryRepo) SaveWorld(ctx context.Context, worldID string, data []byte) error {
	if err := validateName("мира", worldID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.worlds[worldID] = append([]byte(nil), data...)
	return nil
}

func (r *MemoryRepo) LoadWorld(ctx context.Context, worldID string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.worlds[worldID]
	return append([]byte(nil), data...), ok, nil
}

func (r *MemoryRepo) ListWorlds(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.worlds))
	for id := range r.worlds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *MemoryRepo) Close() error { return nil }
