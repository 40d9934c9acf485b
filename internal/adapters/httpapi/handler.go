// Package httpapi exposes the catalog service, reports and exports as a JSON
// HTTP API under /api/v1.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"agroconsole/internal/adapters/exports"
	"agroconsole/internal/core"
	"agroconsole/pkg/domain"
)

const maxBodyBytes = 1 << 20

// Handler serves the console API.
type Handler struct {
	svc      *core.Service
	renderer *exports.Renderer
	exports  *exports.Worker
	logger   *zap.Logger
	auth     *Authenticator
	mux      *http.ServeMux
}

// Option customises a Handler.
type Option func(*Handler)

// WithExports enables the asynchronous export endpoints.
func WithExports(w *exports.Worker) Option {
	return func(h *Handler) { h.exports = w }
}

// WithRenderer overrides the renderer used for synchronous downloads.
func WithRenderer(r *exports.Renderer) Option {
	return func(h *Handler) {
		if r != nil {
			h.renderer = r
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithAuth requires a valid bearer token on every API route.
func WithAuth(a *Authenticator) Option {
	return func(h *Handler) { h.auth = a }
}

// NewHandler constructs the API handler over svc.
func NewHandler(svc *core.Service, opts ...Option) *Handler {
	h := &Handler{svc: svc, logger: zap.NewNop(), mux: http.NewServeMux()}
	for _, opt := range opts {
		opt(h)
	}
	if h.renderer == nil {
		h.renderer = exports.NewRenderer(svc)
	}
	h.routes()
	return h
}

func (h *Handler) routes() {
	m := h.mux
	m.HandleFunc("GET /api/v1/modules", h.listModules)
	m.HandleFunc("GET /api/v1/navigation", h.navigation)
	m.HandleFunc("GET /api/v1/catalogs", h.listCatalogs)
	m.HandleFunc("GET /api/v1/catalogs/{catalog}", h.listRecords)
	m.HandleFunc("POST /api/v1/catalogs/{catalog}", h.createRecord)
	m.HandleFunc("GET /api/v1/catalogs/{catalog}/report", h.downloadReport)
	m.HandleFunc("GET /api/v1/catalogs/{catalog}/{id}", h.getRecord)
	m.HandleFunc("PUT /api/v1/catalogs/{catalog}/{id}", h.updateRecord)
	m.HandleFunc("DELETE /api/v1/catalogs/{catalog}/{id}", h.deleteRecord)
	m.HandleFunc("POST /api/v1/catalogs/{catalog}/{id}/vigencia", h.vigencia)
	m.HandleFunc("GET /api/v1/settings", h.listSettings)
	m.HandleFunc("GET /api/v1/settings/{key}", h.getSettings)
	m.HandleFunc("PUT /api/v1/settings/{key}", h.saveSettings)
	m.HandleFunc("GET /api/v1/reports/warehouse-guides/correlatives", h.guideCorrelatives)
	m.HandleFunc("POST /api/v1/reports/warehouse-guides", h.guidesReport)
	m.HandleFunc("POST /api/v1/exports", h.createExport)
	m.HandleFunc("GET /api/v1/exports/{id}", h.getExport)
	m.HandleFunc("GET /api/v1/exports/{id}/artifacts/{format}", h.downloadArtifact)
	m.HandleFunc("GET /api/v1/rut/validate", h.validateRUT)
	m.HandleFunc("GET /api/v1/geography/regions", h.regions)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	if h.auth != nil {
		claims, err := h.auth.Authenticate(r)
		if err != nil {
			rec.Header().Set("WWW-Authenticate", `Bearer realm="agroconsole"`)
			writeError(rec, http.StatusUnauthorized, err.Error())
			h.logRequest(r, rec.status, start)
			return
		}
		r = r.WithContext(withClaims(r.Context(), claims))
	}
	h.mux.ServeHTTP(rec, r)
	h.logRequest(r, rec.status, start)
}

func (h *Handler) logRequest(r *http.Request, status int, start time.Time) {
	h.logger.Debug("http request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (h *Handler) listModules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"modules": h.svc.Modules()})
}

func (h *Handler) navigation(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"areas": h.svc.Navigation()})
}

func (h *Handler) listCatalogs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"catalogs": h.svc.Catalogs()})
}

func (h *Handler) regions(w http.ResponseWriter, _ *http.Request) {
	type region struct {
		core.Region
		Communes []core.Commune `json:"communes"`
	}
	var out []region
	for _, r := range core.Regions() {
		out = append(out, region{Region: r, Communes: core.Communes(r.Code)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"regions": out})
}

// listQuery reads company, parent, q, active, sort and dir.
func listQuery(r *http.Request, catalog string) (core.ListQuery, error) {
	q := r.URL.Query()
	out := core.ListQuery{Catalog: catalog, ParentID: q.Get("parent"), Search: q.Get("q")}
	if raw := q.Get("company"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return out, fmt.Errorf("invalid company %q", raw)
		}
		out.CompanyID = id
	}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return out, fmt.Errorf("invalid active %q", raw)
		}
		out.ActiveOnly = active
	}
	dir, err := core.ParseSortDirection(q.Get("dir"))
	if err != nil {
		return out, err
	}
	out.Sort = core.SortSpec{Column: q.Get("sort"), Direction: dir}
	return out, nil
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	catalog := r.PathValue("catalog")
	schema, err := h.svc.Catalog(catalog)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	q, err := listQuery(r, catalog)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := h.svc.ListRecords(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	docs := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		docs = append(docs, core.RecordDocument(schema, rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"catalog": schema.Key, "records": docs})
}

func (h *Handler) createRecord(w http.ResponseWriter, r *http.Request) {
	schema, err := h.svc.Catalog(r.PathValue("catalog"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	var doc map[string]any
	if !decodeBody(w, r, &doc) {
		return
	}
	in, err := core.DecodeRecordInput(schema, doc, nil)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rec, res, err := h.svc.CreateRecord(r.Context(), schema.Key, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordResponse(schema, rec, res))
}

// record resolves {catalog}/{id}; records of other catalogs are not found.
func (h *Handler) record(w http.ResponseWriter, r *http.Request) (core.CatalogSchema, core.Record, bool) {
	schema, err := h.svc.Catalog(r.PathValue("catalog"))
	if err != nil {
		h.writeServiceError(w, err)
		return schema, core.Record{}, false
	}
	id := r.PathValue("id")
	rec, err := h.svc.GetRecord(r.Context(), id)
	if err == nil && rec.Catalog != schema.Key {
		err = domain.ErrNotFound{Entity: domain.EntityRecord, ID: id}
	}
	if err != nil {
		h.writeServiceError(w, err)
		return schema, core.Record{}, false
	}
	return schema, rec, true
}

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request) {
	schema, rec, ok := h.record(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, recordResponse(schema, rec, core.Result{}))
}

func (h *Handler) updateRecord(w http.ResponseWriter, r *http.Request) {
	schema, current, ok := h.record(w, r)
	if !ok {
		return
	}
	var doc map[string]any
	if !decodeBody(w, r, &doc) {
		return
	}
	in, err := core.DecodeRecordInput(schema, doc, &current)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rec, res, err := h.svc.UpdateRecord(r.Context(), current.ID, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse(schema, rec, res))
}

func (h *Handler) vigencia(w http.ResponseWriter, r *http.Request) {
	schema, current, ok := h.record(w, r)
	if !ok {
		return
	}
	var body struct {
		Active *bool `json:"active"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &body) {
		return
	}
	var (
		rec core.Record
		res core.Result
		err error
	)
	if body.Active != nil {
		rec, res, err = h.svc.SetVigencia(r.Context(), current.ID, *body.Active)
	} else {
		rec, res, err = h.svc.ToggleVigencia(r.Context(), current.ID)
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse(schema, rec, res))
}

func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	_, current, ok := h.record(w, r)
	if !ok {
		return
	}
	res, err := h.svc.DeleteRecord(r.Context(), current.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if len(res.Violations) > 0 {
		writeJSON(w, http.StatusOK, map[string]any{"violations": res.Violations})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) downloadReport(w http.ResponseWriter, r *http.Request) {
	catalog := r.PathValue("catalog")
	if _, err := h.svc.Catalog(catalog); err != nil {
		h.writeServiceError(w, err)
		return
	}
	format, err := exports.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := listQuery(r, catalog)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	file, err := h.renderer.RenderNow(r.Context(), q, format)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeFile(w, file.FileName, file.ContentType, file.Payload)
}

func (h *Handler) listSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"forms": h.svc.SettingsForms()})
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	setting, err := h.svc.GetSettings(r.Context(), r.PathValue("key"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if !decodeBody(w, r, &values) {
		return
	}
	setting, res, err := h.svc.SaveSettings(r.Context(), r.PathValue("key"), values)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": setting, "violations": res.Violations})
}

func (h *Handler) guideCorrelatives(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("company")
	company, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid company %q", raw))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"correlatives": h.svc.GuideCorrelatives(r.Context(), company)})
}

func (h *Handler) guidesReport(w http.ResponseWriter, r *http.Request) {
	var req core.GuidesReportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.svc.RunGuidesReport(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) createExport(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		writeError(w, http.StatusNotFound, "exports not enabled")
		return
	}
	var in exports.ExportInput
	if !decodeBody(w, r, &in) {
		return
	}
	if claims, ok := ClaimsFromContext(r.Context()); ok && in.RequestedBy == "" {
		in.RequestedBy = claims.Subject
	}
	rec, err := h.exports.EnqueueExport(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, exports.ErrQueueFull), errors.Is(err, exports.ErrWorkerStopped):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.As(err, new(core.ErrUnknownCatalog)):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": rec})
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		writeError(w, http.StatusNotFound, "exports not enabled")
		return
	}
	rec, ok := h.exports.GetExport(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": rec})
}

func (h *Handler) downloadArtifact(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		writeError(w, http.StatusNotFound, "exports not enabled")
		return
	}
	format, err := exports.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	art, payload, err := h.exports.Artifact(r.Context(), r.PathValue("id"), format)
	if err != nil {
		if errors.Is(err, exports.ErrArtifactNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeServiceError(w, err)
		return
	}
	writeFile(w, art.FileName, art.ContentType, payload)
}

func recordResponse(schema core.CatalogSchema, rec core.Record, res core.Result) map[string]any {
	out := map[string]any{"record": core.RecordDocument(schema, rec)}
	if len(res.Violations) > 0 {
		out["violations"] = res.Violations
	}
	return out
}

// decodeBody reads a JSON body into dst, answering 400 on malformed input.
// Numbers stay json.Number so large codes keep their precision.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeFile(w http.ResponseWriter, name, contentType string, payload []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", contentDisposition(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// contentDisposition sends an ASCII fallback plus the RFC 5987 UTF-8 name,
// since report names carry company names with accents.
func contentDisposition(name string) string {
	ascii := strings.Map(func(r rune) rune {
		if r > 127 || r == '"' {
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, ascii, url.PathEscape(name))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
