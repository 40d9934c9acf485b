package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"agroconsole/pkg/domain"
)

func TestCreateRecordStartsVigenteAndNormalizes(t *testing.T) {
	svc := newFixtureService(t)
	ctx := context.Background()
	rec, res, err := svc.CreateRecord(ctx, CompaniesCatalog, RecordInput{Code: 3, Fields: map[string]any{
		"rut": "12345678-5", "name": "  Frutícola Sur ", "regionCode": "2", "communeCode": 201, "email": "sur@fruticola.cl",
	}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("unexpected violations %+v", res.Violations)
	}
	if !rec.IsActive {
		t.Fatalf("new records must be vigente")
	}
	if rec.String("rut") != "12.345.678-5" || rec.String("name") != "Frutícola Sur" {
		t.Fatalf("expected normalized fields, got %+v", rec.Fields)
	}
	if v, _ := rec.Int("regionCode"); v != 2 {
		t.Fatalf("expected coerced region, got %v", rec.Fields["regionCode"])
	}
}

func TestCreateRecordReportsFieldViolations(t *testing.T) {
	svc := newFixtureService(t)
	_, _, err := svc.CreateRecord(context.Background(), CompaniesCatalog, RecordInput{Code: 9, Fields: map[string]any{
		"rut": "12.345.678-9", "name": "", "regionCode": 1, "communeCode": 201, "email": "not-mail",
	}})
	if !IsValidation(err) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	rules := violationRules(err)
	for _, want := range []string{"field_validation:rut", "field_validation:name", "field_validation:email", "reference_integrity:communeCode"} {
		if !contains(rules, want) {
			t.Fatalf("expected %s in %v", want, rules)
		}
	}
	if len(svc.Store().ListRecords(CompaniesCatalog)) != 2 {
		t.Fatalf("rejected record must not be stored")
	}
}

func TestCreateRecordRejectsDuplicateCodeWithinScope(t *testing.T) {
	svc := newFixtureService(t)
	ctx := context.Background()
	in := RecordInput{Code: 10, CompanyID: 1, Fields: map[string]any{"description": "Administración"}}
	if _, _, err := svc.CreateRecord(ctx, "departments", in); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, _, err := svc.CreateRecord(ctx, "departments", in)
	if !contains(violationRules(err), "unique_code:code") {
		t.Fatalf("expected unique_code violation, got %v", err)
	}
	// Same code under another company is allowed, with an inactive company warning.
	in.CompanyID = 2
	_, res, err := svc.CreateRecord(ctx, "departments", in)
	if err != nil {
		t.Fatalf("create under second company: %v", err)
	}
	warns := res.Filter(domain.SeverityWarn)
	if len(warns) != 1 || warns[0].Rule != RuleInactiveCompanyWarning {
		t.Fatalf("expected inactive company warning, got %+v", res.Violations)
	}
}

func TestCreateRecordChecksReferences(t *testing.T) {
	svc := newFixtureService(t)
	ctx := context.Background()
	_, _, err := svc.CreateRecord(ctx, "departments", RecordInput{Code: 1, CompanyID: 99, Fields: map[string]any{"description": "X"}})
	if !contains(violationRules(err), "reference_integrity:companyId") {
		t.Fatalf("expected missing company violation, got %v", err)
	}
	_, _, err = svc.CreateRecord(ctx, "departments", RecordInput{Code: 1, Fields: map[string]any{"description": "X"}})
	if !contains(violationRules(err), "field_validation:companyId") {
		t.Fatalf("expected company required violation, got %v", err)
	}
	_, _, err = svc.CreateRecord(ctx, "storage_levels", RecordInput{Code: 1, ParentID: "missing", Fields: map[string]any{"name": "Pasillo"}})
	if !contains(violationRules(err), "reference_integrity:parentId") {
		t.Fatalf("expected missing parent violation, got %v", err)
	}
	_, _, err = svc.CreateRecord(ctx, "afp", RecordInput{Code: -1, Fields: map[string]any{"description": "X", "commission": -2}})
	rules := violationRules(err)
	if !contains(rules, "field_validation:afpCode") || !contains(rules, "field_validation:commission") {
		t.Fatalf("expected code and min violations, got %v", rules)
	}
	if _, _, err := svc.CreateRecord(ctx, "nope", RecordInput{}); !errors.As(err, new(ErrUnknownCatalog)) {
		t.Fatalf("expected unknown catalog, got %v", err)
	}
}

func TestUpdateRecordKeepsCodeImmutable(t *testing.T) {
	svc := newFixtureService(t)
	ctx := context.Background()
	rec, _, err := svc.CreateRecord(ctx, "afp", RecordInput{Code: 4, Fields: map[string]any{"description": "MODELO", "commission": 0.58}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.UpdateRecord(ctx, rec.ID, RecordInput{Code: 5, Fields: rec.Fields}); !errors.Is(err, ErrCodeImmutable) {
		t.Fatalf("expected immutable code error, got %v", err)
	}
	updated, _, err := svc.UpdateRecord(ctx, rec.ID, RecordInput{Code: 4, Fields: map[string]any{"description": "MODELO S.A.", "commission": "0.69"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.String("description") != "MODELO S.A." {
		t.Fatalf("unexpected description %q", updated.String("description"))
	}
	if f, _ := updated.Float("commission"); f != 0.69 {
		t.Fatalf("unexpected commission %v", f)
	}
	if !updated.IsActive {
		t.Fatalf("update must not change vigencia")
	}
	var nf domain.ErrNotFound
	if _, _, err := svc.UpdateRecord(ctx, "missing", RecordInput{}); !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVigenciaToggleAndSet(t *testing.T) {
	svc := newFixtureService(t)
	ctx := context.Background()
	rec, _, err := svc.CreateRecord(ctx, "afp", RecordInput{Code: 1, Fields: map[string]any{"description": "CAPITAL", "commission": 1.44}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	toggled, _, err := svc.ToggleVigencia(ctx, rec.ID)
	if err != nil || toggled.IsActive {
		t.Fatalf("expected inactive after toggle, got %+v err=%v", toggled, err)
	}
	toggled, _, err = svc.ToggleVigencia(ctx, rec.ID)
	if err != nil || !toggled.IsActive {
		t.Fatalf("expected active after second toggle, got %+v err=%v", toggled, err)
	}
	set, _, err := svc.SetVigencia(ctx, rec.ID, true)
	if err != nil || !set.IsActive {
		t.Fatalf("set vigencia idempotent: %+v err=%v", set, err)
	}
	if _, _, err := svc.ToggleVigencia(ctx, "missing"); !errors.As(err, new(domain.ErrNotFound)) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteRecordHonoursCatalogPolicy(t *testing.T) {
	svc := newFixtureService(t)
	ctx := context.Background()
	afp, _, err := svc.CreateRecord(ctx, "afp", RecordInput{Code: 2, Fields: map[string]any{"description": "CUPRUM", "commission": 1.44}})
	if err != nil {
		t.Fatalf("create afp: %v", err)
	}
	if _, err := svc.DeleteRecord(ctx, afp.ID); !errors.Is(err, ErrNotDeletable) {
		t.Fatalf("expected not deletable, got %v", err)
	}

	warehouse, _, err := svc.CreateRecord(ctx, "warehouses", RecordInput{Code: 1, CompanyID: 1, Fields: map[string]any{"name": "Bodega Principal"}})
	if err != nil {
		t.Fatalf("create warehouse: %v", err)
	}
	for _, code := range []int64{10, 20} {
		if _, _, err := svc.CreateRecord(ctx, "storage_levels", RecordInput{Code: code, ParentID: warehouse.ID, Fields: map[string]any{"name": "Pasillo"}}); err != nil {
			t.Fatalf("create level %d: %v", code, err)
		}
	}
	if _, err := svc.DeleteRecord(ctx, warehouse.ID); err != nil {
		t.Fatalf("delete warehouse: %v", err)
	}
	if n := len(svc.Store().ListRecords("storage_levels")); n != 0 {
		t.Fatalf("expected levels deleted with warehouse, %d left", n)
	}
	if _, err := svc.DeleteRecord(ctx, warehouse.ID); !errors.As(err, new(domain.ErrNotFound)) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestDeleteRecordBlockedByNonDeletableChild(t *testing.T) {
	svc := NewInMemoryService()
	mod := fixtureModule{name: "fixture", extra: func(reg *ModuleRegistry) error {
		if err := reg.RegisterCatalog(CatalogSchema{
			Key: "owners", Title: "Dueños", CodeField: "code", Deletable: true,
			Fields: []FieldSpec{{Name: "name", Label: "Nombre", Kind: domain.KindString, Required: true}},
		}); err != nil {
			return err
		}
		return reg.RegisterCatalog(CatalogSchema{
			Key: "pinned", Title: "Fijos", CodeField: "code", ParentCatalog: "owners",
			Fields: []FieldSpec{{Name: "name", Label: "Nombre", Kind: domain.KindString, Required: true}},
		})
	}}
	if _, err := svc.InstallModule(mod); err != nil {
		t.Fatalf("install: %v", err)
	}
	ctx := context.Background()
	owner, _, err := svc.CreateRecord(ctx, "owners", RecordInput{Code: 1, Fields: map[string]any{"name": "Dueño"}})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	if _, _, err := svc.CreateRecord(ctx, "pinned", RecordInput{Code: 1, ParentID: owner.ID, Fields: map[string]any{"name": "Fijo"}}); err != nil {
		t.Fatalf("create pinned: %v", err)
	}
	if _, err := svc.DeleteRecord(ctx, owner.ID); !errors.Is(err, ErrNotDeletable) {
		t.Fatalf("expected not deletable, got %v", err)
	}
	if _, err := svc.GetRecord(ctx, owner.ID); err != nil {
		t.Fatalf("owner should survive blocked delete: %v", err)
	}
}

func TestListRecordsFiltersSearchesAndSorts(t *testing.T) {
	svc := newFixtureService(t)
	ctx := context.Background()
	for _, d := range []struct {
		code    int64
		company int64
		desc    string
	}{
		{10, 1, "Administración"},
		{20, 1, "Operaciones Campo"},
		{30, 1, "Bodega Insumos"},
		{15, 2, "Comercial Exportación"},
	} {
		if _, _, err := svc.CreateRecord(ctx, "departments", RecordInput{Code: d.code, CompanyID: d.company, Fields: map[string]any{"description": d.desc}}); err != nil {
			t.Fatalf("create %d: %v", d.code, err)
		}
	}
	list, err := svc.ListRecords(ctx, ListQuery{Catalog: "departments", CompanyID: 1, Sort: SortSpec{Column: "description"}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Code != 10 || list[1].Code != 30 || list[2].Code != 20 {
		t.Fatalf("unexpected order %v", recordCodes(list))
	}
	list, _ = svc.ListRecords(ctx, ListQuery{Catalog: "departments", Search: "EXPORTACION"})
	if len(list) != 1 || list[0].Code != 15 {
		t.Fatalf("expected accent insensitive match, got %v", recordCodes(list))
	}
	list, _ = svc.ListRecords(ctx, ListQuery{Catalog: "departments", Sort: SortSpec{Column: "code", Direction: SortDesc}})
	if recordCodes(list)[0] != 30 {
		t.Fatalf("expected descending codes, got %v", recordCodes(list))
	}
	if _, err := svc.ListRecords(ctx, ListQuery{Catalog: "departments", Sort: SortSpec{Column: "bogus"}}); !errors.Is(err, ErrInvalidSort) {
		t.Fatalf("expected invalid sort, got %v", err)
	}
	rec := list[0]
	if _, _, err := svc.ToggleVigencia(ctx, rec.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	list, _ = svc.ListRecords(ctx, ListQuery{Catalog: "departments", ActiveOnly: true})
	if len(list) != 3 {
		t.Fatalf("expected active only filter, got %v", recordCodes(list))
	}
	empty, err := svc.ListRecords(ctx, ListQuery{Catalog: "afp"})
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %v err=%v", empty, err)
	}
}

func recordCodes(list []Record) []int64 {
	out := make([]int64, 0, len(list))
	for _, r := range list {
		out = append(out, r.Code)
	}
	return out
}

func TestSettingsDefaultsAndSave(t *testing.T) {
	svc := newFixtureService(t)
	ctx := context.Background()
	st, err := svc.GetSettings(ctx, "general")
	if err != nil {
		t.Fatalf("get defaults: %v", err)
	}
	if st.Values["companyName"] != "AgroSys S.A." || st.Values["utilizaCentroCosto"] != false {
		t.Fatalf("unexpected defaults %+v", st.Values)
	}
	if _, _, err := svc.SaveSettings(ctx, "general", map[string]any{"companyName": "", "defaultCurrency": "USD"}); !contains(violationRules(err), "field_validation:companyName") {
		t.Fatalf("expected required violation, got %v", err)
	}
	if _, _, err := svc.SaveSettings(ctx, "general", map[string]any{"companyName": "AgroSur", "defaultCurrency": "USD", "utilizaCentroCosto": "true"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	st, _ = svc.GetSettings(ctx, "general")
	if st.Values["companyName"] != "AgroSur" || st.Values["utilizaCentroCosto"] != true {
		t.Fatalf("unexpected saved values %+v", st.Values)
	}
	if _, err := svc.GetSettings(ctx, "missing"); !errors.As(err, new(ErrUnknownSettings)) {
		t.Fatalf("expected unknown settings, got %v", err)
	}
	if len(svc.SettingsForms()) != 1 {
		t.Fatalf("expected one settings form")
	}
}

func TestGuidesReport(t *testing.T) {
	svc := newFixtureService(t)
	ctx := context.Background()
	got := svc.GuideCorrelatives(ctx, 1)
	if len(got) != 3 || got[0] != 1001 || got[2] != 1004 {
		t.Fatalf("unexpected correlatives %v", got)
	}
	if len(svc.GuideCorrelatives(ctx, 0)) != 0 {
		t.Fatalf("no company means no correlatives")
	}

	_, err := svc.RunGuidesReport(ctx, GuidesReportRequest{})
	if !contains(violationRules(err), "guides_report:empresaId") {
		t.Fatalf("expected company required, got %v", err)
	}
	from, to := int64(1004), int64(1001)
	_, err = svc.RunGuidesReport(ctx, GuidesReportRequest{CompanyID: 1, From: &from, To: &to})
	if !contains(violationRules(err), "guides_report:correlativoHasta") {
		t.Fatalf("expected range violation, got %v", err)
	}
	foreign := int64(1003)
	_, err = svc.RunGuidesReport(ctx, GuidesReportRequest{CompanyID: 1, From: &foreign})
	if !contains(violationRules(err), "guides_report:correlativoDesde") {
		t.Fatalf("expected foreign correlative violation, got %v", err)
	}

	from, to = 1001, 1004
	out, err := svc.RunGuidesReport(ctx, GuidesReportRequest{CompanyID: 1, From: &from, To: &to, DateFrom: "2024-03-10", DateTo: "2024-04-30"})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(out.Guides) != 2 || out.Guides[0].Code != 1002 || out.Guides[1].Code != 1004 {
		t.Fatalf("unexpected guides %v", recordCodes(out.Guides))
	}
	_, err = svc.RunGuidesReport(ctx, GuidesReportRequest{CompanyID: 1, DateFrom: "2024-05-01", DateTo: "2024-04-01"})
	if !contains(violationRules(err), "guides_report:fechaHasta") {
		t.Fatalf("expected date range violation, got %v", err)
	}
}

func TestInstallModuleRejectsDuplicates(t *testing.T) {
	svc := newFixtureService(t)
	if _, err := svc.InstallModule(fixtureModule{name: "fixture"}); err == nil {
		t.Fatalf("expected duplicate module error")
	}
	if _, err := svc.InstallModule(fixtureModule{name: "other"}); err == nil {
		t.Fatalf("expected duplicate catalog error")
	}
	if _, err := svc.InstallModule(nil); err == nil {
		t.Fatalf("expected nil module error")
	}
	mods := svc.Modules()
	if len(mods) != 1 || mods[0].Name != "fixture" || len(mods[0].Catalogs) != 6 {
		t.Fatalf("unexpected modules %+v", mods)
	}
}

type areasOnly struct{}

func (areasOnly) Name() string    { return "navigation" }
func (areasOnly) Version() string { return "0.1.0" }
func (areasOnly) Register(reg *ModuleRegistry) error {
	reg.RegisterArea(NavigationArea{Key: "dashboard", Label: "Gestión", Order: 1})
	reg.RegisterArea(NavigationArea{Key: "bpa", Label: "BPA", Order: 12})
	return nil
}

func TestNavigationMarksUnderConstruction(t *testing.T) {
	svc := newFixtureService(t)
	if _, err := svc.InstallModule(areasOnly{}); err != nil {
		t.Fatalf("install: %v", err)
	}
	nav := svc.Navigation()
	if len(nav) != 3 || nav[0].Key != "dashboard" || nav[1].Key != "fixture" || nav[2].Key != "bpa" {
		t.Fatalf("unexpected navigation %+v", nav)
	}
	if !nav[0].UnderConstruction || nav[1].UnderConstruction {
		t.Fatalf("unexpected construction flags %+v", nav)
	}
}

func TestServiceObservability(t *testing.T) {
	audit := &captureAudit{}
	metrics := &captureMetrics{}
	tracer := &captureTracer{}
	fixed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	svc := newFixtureService(t, WithAuditRecorder(audit), WithMetricsRecorder(metrics), WithTracer(tracer), WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	rec, _, err := svc.CreateRecord(ctx, "afp", RecordInput{Code: 1, Fields: map[string]any{"description": "CAPITAL", "commission": 1.44}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !rec.CreatedAt.Equal(fixed) {
		t.Fatalf("expected store clock override, got %v", rec.CreatedAt)
	}
	if _, err := svc.DeleteRecord(ctx, rec.ID); err == nil {
		t.Fatalf("expected delete failure")
	}
	if !audit.has("create_record", AuditStatusSuccess) || !audit.has("delete_record", AuditStatusError) {
		t.Fatalf("unexpected audit entries %+v", audit.entries)
	}
	if !metrics.has("create_record", true) || !metrics.has("delete_record", false) {
		t.Fatalf("unexpected metrics %+v", metrics.calls)
	}
	if len(tracer.ended) != len(tracer.started) || len(tracer.started) < 2 {
		t.Fatalf("spans must be ended: started=%v ended=%d", tracer.started, len(tracer.ended))
	}
	if _, err := svc.ListRecords(ctx, ListQuery{Catalog: "afp"}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if audit.has("list_records", AuditStatusSuccess) {
		t.Fatalf("reads must not be audited")
	}
}

type captureAudit struct{ entries []AuditEntry }

func (c *captureAudit) Record(_ context.Context, e AuditEntry) { c.entries = append(c.entries, e) }

func (c *captureAudit) has(op string, status AuditStatus) bool {
	for _, e := range c.entries {
		if e.Operation == op && e.Status == status {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetrics struct{ calls []metricsCall }

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetrics) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	started []string
	ended   []error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, captureSpan{tracer: c}
}

type captureSpan struct{ tracer *captureTracer }

func (s captureSpan) End(err error) { s.tracer.ended = append(s.tracer.ended, err) }
