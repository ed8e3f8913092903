package bom

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/benchfab/circuitstock/internal/vendors/mouser"
	"github.com/benchfab/circuitstock/pkg/config"
	"github.com/benchfab/circuitstock/pkg/db/models"
	pkgerrors "github.com/benchfab/circuitstock/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:bom_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Footprint{},
		&models.Package{},
		&models.Part{},
		&models.Vendor{},
		&models.VendorPart{},
		&models.Inventory{},
		&models.InventoryLine{},
		&models.Project{},
		&models.ProjectVersion{},
		&models.ProjectPart{},
		&models.ProjectPartRef{},
		&models.ImplicitProjectPart{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// bomServer serves a swappable CSV body at the raw-file path a forge
// would use.
type bomServer struct {
	mu   sync.Mutex
	body string
	srv  *httptest.Server
}

func newBOMServer(t *testing.T, body string) *bomServer {
	t.Helper()
	s := &bomServer{body: body}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/boards/widget/raw/abc123/bom/bom.csv" {
			http.NotFound(w, r)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		w.Write([]byte(s.body))
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *bomServer) set(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = body
}

type fixture struct {
	t       *testing.T
	db      *gorm.DB
	version models.ProjectVersion
}

func newFixture(t *testing.T, db *gorm.DB, gitURL string) *fixture {
	t.Helper()
	f := &fixture{t: t, db: db}
	project := models.Project{ID: uuid.New(), Name: "widget", GitURL: gitURL + "/boards/widget"}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	f.version = models.ProjectVersion{
		ID:        uuid.New(),
		ProjectID: project.ID,
		CommitRef: "abc123",
		BOMPath:   "bom/bom.csv",
	}
	if err := db.Create(&f.version).Error; err != nil {
		t.Fatalf("seed version: %v", err)
	}
	return f
}

// part seeds a catalog chain reachable by value, footprint and symbol.
func (f *fixture) part(value, footprintName, symbol string) models.Part {
	f.t.Helper()
	var footprint models.Footprint
	err := f.db.Where("name = ?", footprintName).First(&footprint).Error
	if err == gorm.ErrRecordNotFound {
		footprint = models.Footprint{ID: uuid.New(), Name: footprintName}
		err = f.db.Create(&footprint).Error
	}
	if err != nil {
		f.t.Fatalf("seed footprint: %v", err)
	}
	pkg := models.Package{ID: uuid.New(), Name: footprintName, Footprints: []models.Footprint{footprint}}
	if err := f.db.Create(&pkg).Error; err != nil {
		f.t.Fatalf("seed package: %v", err)
	}
	part := models.Part{
		ID:        uuid.New(),
		Name:      symbol + " " + value,
		Value:     &value,
		Symbol:    &symbol,
		PackageID: &pkg.ID,
	}
	if err := f.db.Create(&part).Error; err != nil {
		f.t.Fatalf("seed part: %v", err)
	}
	return part
}

func (f *fixture) stock(partID uuid.UUID, quantity int, deprioritized bool) {
	f.t.Helper()
	inventory := models.Inventory{ID: uuid.New(), Name: "bench-" + uuid.NewString()[:8]}
	if err := f.db.Create(&inventory).Error; err != nil {
		f.t.Fatalf("seed inventory: %v", err)
	}
	line := models.InventoryLine{
		ID:            uuid.New(),
		InventoryID:   inventory.ID,
		PartID:        partID,
		Quantity:      quantity,
		Deprioritized: deprioritized,
	}
	if err := f.db.Create(&line).Error; err != nil {
		f.t.Fatalf("seed line: %v", err)
	}
}

func newTestService(t *testing.T, db *gorm.DB, placeholder PlaceholderCreator) Service {
	t.Helper()
	repo := NewRepository(db)
	svc, err := NewService(repo, NewResolver(repo, placeholder), config.SyncConfig{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func (f *fixture) rows() []models.ProjectPart {
	f.t.Helper()
	var rows []models.ProjectPart
	if err := f.db.Preload("Refs").
		Where("version_id = ?", f.version.ID).
		Order("line_number, is_implicit").
		Find(&rows).Error; err != nil {
		f.t.Fatalf("list rows: %v", err)
	}
	return rows
}

func TestSyncResolvesRowsAndRefs(t *testing.T) {
	db := newTestDB(t)
	server := newBOMServer(t, "#,Reference,Qty,Value,Footprint\n1,\"R1, R2\",2,10k,R_0805\n")
	f := newFixture(t, db, server.srv.URL)
	part := f.part("10k", "R_0805", "R")

	result, err := newTestService(t, db, nil).Sync(context.Background(), f.version.ID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Rows != 1 || result.Resolved != 1 || result.Diagnostics != nil {
		t.Fatalf("unexpected result: %+v", result)
	}

	rows := f.rows()
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row.PartID == nil || *row.PartID != part.ID {
		t.Errorf("row not resolved to seeded part: %+v", row)
	}
	if row.Quantity != 2 || row.MissingPartDescription != nil {
		t.Errorf("unexpected row state: %+v", row)
	}
	if len(row.Refs) != 2 {
		t.Errorf("got %d refs, want 2", len(row.Refs))
	}

	var version models.ProjectVersion
	if err := db.First(&version, "id = ?", f.version.ID).Error; err != nil {
		t.Fatalf("reload version: %v", err)
	}
	if version.SyncedAt == nil {
		t.Error("synced_at not stamped")
	}
}

func TestSyncUnresolvedRowKeepsDiagnostic(t *testing.T) {
	db := newTestDB(t)
	server := newBOMServer(t, "#,Reference,Qty,Value,Footprint\n4,Q1,1,BC547,TO-92\n")
	f := newFixture(t, db, server.srv.URL)

	result, err := newTestService(t, db, nil).Sync(context.Background(), f.version.ID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Resolved != 0 {
		t.Fatalf("nothing should resolve: %+v", result)
	}
	if lines := result.Diagnostics[DiagnosticPartMissing]; len(lines) != 1 || lines[0] != 4 {
		t.Fatalf("diagnostics = %v", result.Diagnostics)
	}

	rows := f.rows()
	if len(rows) != 1 || rows[0].PartID != nil {
		t.Fatalf("unresolved row should persist without a part: %+v", rows)
	}
	if rows[0].MissingPartDescription == nil {
		t.Error("missing part description not recorded")
	}
}

func TestSyncResolutionClearsStaleDiagnostic(t *testing.T) {
	db := newTestDB(t)
	server := newBOMServer(t, "#,Reference,Qty,Value,Footprint\n1,Q1,1,BC547,TO-92\n")
	f := newFixture(t, db, server.srv.URL)
	svc := newTestService(t, db, nil)

	if _, err := svc.Sync(context.Background(), f.version.ID); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	part := f.part("BC547", "TO-92", "Q")
	result, err := svc.Sync(context.Background(), f.version.ID)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if result.Resolved != 1 || result.Diagnostics != nil {
		t.Fatalf("row should now resolve: %+v", result)
	}

	rows := f.rows()
	if len(rows) != 1 || rows[0].PartID == nil || *rows[0].PartID != part.ID {
		t.Fatalf("row not re-resolved: %+v", rows)
	}
	if rows[0].MissingPartDescription != nil {
		t.Error("stale missing description kept")
	}
}

func TestSyncRemovesDroppedRows(t *testing.T) {
	db := newTestDB(t)
	server := newBOMServer(t,
		"#,Reference,Qty,Value,Footprint\n1,R1,1,10k,R_0805\n2,R2,1,22k,R_0805\n")
	f := newFixture(t, db, server.srv.URL)
	f.part("10k", "R_0805", "R")
	f.part("22k", "R_0805", "R")
	svc := newTestService(t, db, nil)

	if _, err := svc.Sync(context.Background(), f.version.ID); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if rows := f.rows(); len(rows) != 2 {
		t.Fatalf("got %d rows after first sync, want 2", len(rows))
	}

	server.set("#,Reference,Qty,Value,Footprint\n1,R1,1,10k,R_0805\n")
	if _, err := svc.Sync(context.Background(), f.version.ID); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	rows := f.rows()
	if len(rows) != 1 || rows[0].LineNumber != 1 {
		t.Fatalf("dropped row survived: %+v", rows)
	}
}

func TestSyncIsStableAcrossRuns(t *testing.T) {
	db := newTestDB(t)
	server := newBOMServer(t, "#,Reference,Qty,Value,Footprint\n1,R1,1,10k,R_0805\n")
	f := newFixture(t, db, server.srv.URL)
	f.part("10k", "R_0805", "R")
	svc := newTestService(t, db, nil)

	if _, err := svc.Sync(context.Background(), f.version.ID); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	firstID := f.rows()[0].ID

	if _, err := svc.Sync(context.Background(), f.version.ID); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	rows := f.rows()
	if len(rows) != 1 || rows[0].ID != firstID {
		t.Fatalf("row identity changed across syncs: %+v", rows)
	}
}

func TestSyncExpandsImplicitParts(t *testing.T) {
	db := newTestDB(t)
	server := newBOMServer(t, "#,Reference,Qty,Value,Footprint\n1,RV1,2,100k,Pot_16mm\n")
	f := newFixture(t, db, server.srv.URL)
	pot := f.part("100k", "Pot_16mm", "RV")
	knob := f.part("", "Knob_6mm", "HW")
	rule := models.ImplicitProjectPart{
		ID:           uuid.New(),
		PartID:       knob.ID,
		ForPackageID: *pot.PackageID,
		Quantity:     3,
	}
	if err := db.Create(&rule).Error; err != nil {
		t.Fatalf("seed rule: %v", err)
	}
	svc := newTestService(t, db, nil)

	if _, err := svc.Sync(context.Background(), f.version.ID); err != nil {
		t.Fatalf("sync: %v", err)
	}
	rows := f.rows()
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want explicit plus implicit", len(rows))
	}
	implicit := rows[1]
	if !implicit.IsImplicit || implicit.Quantity != 6 || *implicit.PartID != knob.ID {
		t.Fatalf("unexpected implicit row: %+v", implicit)
	}

	// Quantity change on the explicit row rescales the expansion in
	// place instead of duplicating it.
	server.set("#,Reference,Qty,Value,Footprint\n1,RV1,4,100k,Pot_16mm\n")
	if _, err := svc.Sync(context.Background(), f.version.ID); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	rows = f.rows()
	if len(rows) != 2 {
		t.Fatalf("implicit row duplicated: %+v", rows)
	}
	if rows[1].ID != implicit.ID || rows[1].Quantity != 12 {
		t.Fatalf("implicit row not rescaled: %+v", rows[1])
	}
}

func TestSyncPrefersStockedCatalogPart(t *testing.T) {
	db := newTestDB(t)
	server := newBOMServer(t, "#,Reference,Qty,Value,Footprint\n1,R1,1,10k,R_0805\n")
	f := newFixture(t, db, server.srv.URL)
	shelved := f.part("10k", "R_0805", "R")
	f.stock(shelved.ID, 50, true)
	stocked := f.part("10k", "R_0805", "R")
	f.stock(stocked.ID, 5, false)

	if _, err := newTestService(t, db, nil).Sync(context.Background(), f.version.ID); err != nil {
		t.Fatalf("sync: %v", err)
	}
	rows := f.rows()
	if rows[0].PartID == nil || *rows[0].PartID != stocked.ID {
		t.Fatalf("deprioritized-only part chosen over stocked one: %+v", rows[0])
	}
}

type fakePlaceholder struct {
	calls []mouser.PlaceholderInput
	part  *models.Part
}

func (f *fakePlaceholder) CreatePlaceholder(_ context.Context, input mouser.PlaceholderInput) (*models.VendorPart, error) {
	f.calls = append(f.calls, input)
	return &models.VendorPart{ID: uuid.New(), PartID: f.part.ID, Part: f.part, ItemNumber: input.ItemNumber}, nil
}

func TestSyncVendorSKUResolvesDirectly(t *testing.T) {
	db := newTestDB(t)
	server := newBOMServer(t,
		"#,Reference,Qty,Value,Footprint,Vendor,PartNum\n1,C1,1,3U3,C_0805,Mouser,80-C0805\n")
	f := newFixture(t, db, server.srv.URL)
	part := f.part("3.3u", "C_0805", "C")
	vendor := models.Vendor{ID: uuid.New(), Name: mouser.VendorName}
	if err := db.Create(&vendor).Error; err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	sku := models.VendorPart{ID: uuid.New(), VendorID: vendor.ID, PartID: part.ID, ItemNumber: "80-C0805"}
	if err := db.Create(&sku).Error; err != nil {
		t.Fatalf("seed sku: %v", err)
	}

	placeholder := &fakePlaceholder{}
	if _, err := newTestService(t, db, placeholder).Sync(context.Background(), f.version.ID); err != nil {
		t.Fatalf("sync: %v", err)
	}
	rows := f.rows()
	if rows[0].PartID == nil || *rows[0].PartID != part.ID {
		t.Fatalf("sku did not resolve to its part: %+v", rows[0])
	}
	if len(placeholder.calls) != 0 {
		t.Errorf("placeholder called for a known sku: %+v", placeholder.calls)
	}
}

func TestSyncUnknownMouserSKUCreatesPlaceholder(t *testing.T) {
	db := newTestDB(t)
	server := newBOMServer(t,
		"#,Reference,Qty,Value,Footprint,Vendor,PartNum\n1,C1,1,3U3,C_0805,Mouser,80-NEW\n")
	f := newFixture(t, db, server.srv.URL)
	part := f.part("3.3u", "C_0805", "C")

	placeholder := &fakePlaceholder{part: &part}
	result, err := newTestService(t, db, placeholder).Sync(context.Background(), f.version.ID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Resolved != 1 {
		t.Fatalf("placeholder part should resolve the row: %+v", result)
	}
	if len(placeholder.calls) != 1 {
		t.Fatalf("placeholder calls = %+v", placeholder.calls)
	}
	call := placeholder.calls[0]
	if call.ItemNumber != "80-NEW" || call.Value != "3.3u" || call.FootprintName != "C_0805" || call.Symbol != "C" {
		t.Errorf("unexpected placeholder input: %+v", call)
	}
}

func TestSyncUnknownVersionIsNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := newTestService(t, db, nil).Sync(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
