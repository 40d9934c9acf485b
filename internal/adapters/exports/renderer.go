package exports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"agroconsole/internal/core"
)

// Source is the read side of the catalog service used for reports.
type Source interface {
	Catalog(key string) (core.CatalogSchema, error)
	Catalogs() []core.CatalogSchema
	ListRecords(ctx context.Context, q core.ListQuery) ([]core.Record, error)
	CompanyName(companyID int64) (string, bool)
}

var _ Source = (*core.Service)(nil)

// Rendered is one encoded report file.
type Rendered struct {
	Catalog     string
	Format      Format
	FileName    string
	ContentType string
	Rows        int
	Payload     []byte
}

// Renderer turns catalog listings into report files.
type Renderer struct {
	src         Source
	now         func() time.Time
	concurrency int
}

// RendererOption customises a Renderer.
type RendererOption func(*Renderer)

// WithClock overrides the time stamped in reports.
func WithClock(now func() time.Time) RendererOption {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// WithConcurrency bounds the catalogs rendered in parallel by ExportModule.
func WithConcurrency(n int) RendererOption {
	return func(r *Renderer) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewRenderer constructs a renderer over src.
func NewRenderer(src Source, opts ...RendererOption) *Renderer {
	r := &Renderer{src: src, now: time.Now, concurrency: 4}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenderNow lists the catalog with q and encodes it synchronously.
func (r *Renderer) RenderNow(ctx context.Context, q core.ListQuery, format Format) (Rendered, error) {
	schema, err := r.src.Catalog(q.Catalog)
	if err != nil {
		return Rendered{}, err
	}
	records, err := r.src.ListRecords(ctx, q)
	if err != nil {
		return Rendered{}, err
	}
	var company string
	if schema.CompanyScoped && q.CompanyID != 0 {
		company, _ = r.src.CompanyName(q.CompanyID)
	}
	report := BuildReport(schema, records, ReportOptions{CompanyName: company})
	payload, err := Render(report, format, r.now())
	if err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", q.Catalog, err)
	}
	return Rendered{
		Catalog:     schema.Key,
		Format:      format,
		FileName:    FileName(schema, format, company),
		ContentType: format.ContentType(),
		Rows:        len(records),
		Payload:     payload,
	}, nil
}

// ExportModule renders every catalog of a module in each format. Catalogs
// are listed unfiltered and rendered concurrently; the result is ordered by
// file name.
func (r *Renderer) ExportModule(ctx context.Context, module string, formats []Format) ([]Rendered, error) {
	var catalogs []core.CatalogSchema
	for _, s := range r.src.Catalogs() {
		if s.Module == module {
			catalogs = append(catalogs, s)
		}
	}
	if len(catalogs) == 0 {
		return nil, fmt.Errorf("module %s has no catalogs", module)
	}
	if len(formats) == 0 {
		formats = []Format{FormatPDF}
	}

	out := make([]Rendered, len(catalogs)*len(formats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, schema := range catalogs {
		for j, format := range formats {
			slot := i*len(formats) + j
			g.Go(func() error {
				rendered, err := r.RenderNow(gctx, core.ListQuery{Catalog: schema.Key}, format)
				if err != nil {
					return err
				}
				out[slot] = rendered
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out, nil
}
