package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/pixel-canvas/internal/assets"
	"github.com/annel0/pixel-canvas/internal/codec"
	"github.com/annel0/pixel-canvas/internal/config"
	"github.com/annel0/pixel-canvas/internal/editor"
	"github.com/annel0/pixel-canvas/internal/logging"
	"github.com/annel0/pixel-canvas/internal/storage"
)

var (
	errNoProject = errors.New("project name is required (-project)")
	errOffline   = errors.New("текстуры в CLI не загружаются")
)

// app команды CLI над хранилищем проектов
type app struct {
	cfg  *config.Config
	repo storage.ProjectRepo
	logs *logging.LoggerManager
	reg  prometheus.Registerer
	out  io.Writer
	in   io.Reader
}

func (a *app) run(ctx context.Context, command, project, file string) error {
	switch command {
	case "list":
		return a.list(ctx)
	case "worlds":
		return a.worlds(ctx)
	}

	if project == "" {
		return errNoProject
	}
	switch command {
	case "inspect":
		return a.inspect(ctx, project)
	case "compact":
		return a.compact(ctx, project)
	case "export-json":
		return a.exportJSON(ctx, project, file)
	case "import-json":
		return a.importJSON(ctx, project, file)
	case "delete":
		return a.repo.DeleteProject(ctx, project)
	default:
		return fmt.Errorf("unknown command %q (available: list, worlds, inspect, compact, export-json, import-json, delete)", command)
	}
}

// newEngine движок редактора без загрузки текстур
func (a *app) newEngine() (*editor.Engine, error) {
	opts, err := editor.OptionsFromConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	opts.Repo = a.repo
	opts.Registerer = a.reg
	opts.Logs = a.logs
	opts.Fetcher = assets.FetcherFunc(func(context.Context, string) (*assets.Texture, error) {
		return nil, errOffline
	})
	return editor.New(opts)
}

func (a *app) list(ctx context.Context) error {
	metas, err := a.repo.ListProjects(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tBLOCKS\tSIZE\tCOMPRESSION\tUPDATED")
	for _, m := range metas {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", m.Name, m.Blocks, m.Size, m.Compression, m.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func (a *app) worlds(ctx context.Context) error {
	ids, err := a.repo.ListWorlds(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(a.out, id)
	}
	return nil
}

func (a *app) load(ctx context.Context, project string) ([]byte, error) {
	data, ok, err := a.repo.LoadProject(ctx, project)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("проект %s: %w", project, storage.ErrNotFound)
	}
	return data, nil
}

func (a *app) inspect(ctx context.Context, project string) error {
	data, err := a.load(ctx, project)
	if err != nil {
		return err
	}
	doc, err := codec.DecodeProject(data, nil)
	if err != nil {
		logging.LogDecodeError(a.logs.Codec(), project, err, data)
		return err
	}

	p := doc.Pool
	fmt.Fprintf(a.out, "project:   %s\n", doc.Name)
	fmt.Fprintf(a.out, "file size: %d bytes\n", len(data))
	fmt.Fprintf(a.out, "camera:    x=%.2f y=%.2f zoom=%.2f\n", doc.Camera.X, doc.Camera.Y, doc.Camera.Zoom)
	fmt.Fprintf(a.out, "tool:      %s\n", doc.Tool)
	fmt.Fprintf(a.out, "slots:     %d used, %d live, %d free, capacity %d\n", p.Count(), p.Live(), p.FreeSlots(), p.Cap())
	fmt.Fprintf(a.out, "palettes:  %d authors, %d extras\n", p.Authors().Len()-1, p.Extras().Len()-1)
	for id, name := range doc.WorldNames {
		fmt.Fprintf(a.out, "world:     %s %q\n", id, name)
	}

	e, err := a.newEngine()
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.LoadProjectData(ctx, data); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "chunk:     %d\n", e.Store().ChunkSize())
	fmt.Fprintf(a.out, "index:     %s\n", e.Store().GetStats())
	return nil
}

// compact уплотняет колонки проекта и пересохраняет его
func (a *app) compact(ctx context.Context, project string) error {
	compression, err := codec.ParseCompression(a.cfg.Storage.Compression)
	if err != nil {
		return err
	}
	data, err := a.load(ctx, project)
	if err != nil {
		return err
	}
	doc, err := codec.DecodeProject(data, nil)
	if err != nil {
		logging.LogDecodeError(a.logs.Codec(), project, err, data)
		return err
	}

	before := doc.Pool.Count()
	remap := doc.Pool.Compact()
	out, err := codec.EncodeProject(doc, compression)
	if err != nil {
		return err
	}
	meta := storage.ProjectMeta{
		Name:        project,
		Blocks:      doc.Pool.Live(),
		Compression: string(compression),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := a.repo.SaveProject(ctx, meta, out); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %d -> %d slots, %d live, %d -> %d bytes\n", project, before, doc.Pool.Count(), len(remap), len(data), len(out))
	return nil
}

func (a *app) exportJSON(ctx context.Context, project, file string) error {
	e, err := a.newEngine()
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.LoadProject(ctx, project); err != nil {
		return err
	}
	data, err := e.ExportJSON()
	if err != nil {
		return err
	}
	if file == "" || file == "-" {
		_, err = a.out.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(file, data, 0644)
}

func (a *app) importJSON(ctx context.Context, project, file string) error {
	var (
		data []byte
		err  error
	)
	if file == "" || file == "-" {
		data, err = io.ReadAll(a.in)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return err
	}

	e, err := a.newEngine()
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.ImportJSON(ctx, data); err != nil {
		return err
	}
	if err := e.SaveProject(ctx, project); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: imported %d blocks\n", project, e.Store().Len())
	return nil
}
