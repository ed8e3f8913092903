package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/benchfab/circuitstock/pkg/db/models"
	pkgerrors "github.com/benchfab/circuitstock/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Part{},
		&models.Vendor{},
		&models.VendorPart{},
		&models.VendorOrder{},
		&models.VendorOrderLine{},
		&models.Inventory{},
		&models.InventoryLine{},
		&models.InventoryAction{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	db        *gorm.DB
	vendor    models.Vendor
	inventory models.Inventory
}

func newFixture(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	f := &fixture{db: db}
	f.vendor = models.Vendor{ID: uuid.New(), Name: "Mouser", BaseURL: "https://mouser.com"}
	if err := db.Create(&f.vendor).Error; err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	f.inventory = models.Inventory{ID: uuid.New(), Name: "bench"}
	if err := db.Create(&f.inventory).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return f
}

func (f *fixture) sku(t *testing.T, itemNumber string) (models.Part, models.VendorPart) {
	t.Helper()
	part := models.Part{ID: uuid.New(), Name: itemNumber}
	if err := f.db.Create(&part).Error; err != nil {
		t.Fatalf("seed part: %v", err)
	}
	vendorPart := models.VendorPart{
		ID:         uuid.New(),
		VendorID:   f.vendor.ID,
		PartID:     part.ID,
		ItemNumber: itemNumber,
	}
	if err := f.db.Create(&vendorPart).Error; err != nil {
		t.Fatalf("seed vendor part: %v", err)
	}
	return part, vendorPart
}

func (f *fixture) order(t *testing.T, lines ...models.VendorOrderLine) models.VendorOrder {
	t.Helper()
	order := models.VendorOrder{ID: uuid.New(), VendorID: f.vendor.ID}
	if err := f.db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	for i := range lines {
		lines[i].ID = uuid.New()
		lines[i].OrderID = order.ID
		if err := f.db.Create(&lines[i]).Error; err != nil {
			t.Fatalf("seed order line: %v", err)
		}
	}
	return order
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCompleteCreatesLinesAndLedgerEntries(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newTestService(t, db)
	ctx := context.Background()

	partA, skuA := f.sku(t, "71-CRCW0805-10K")
	partB, skuB := f.sku(t, "810-C0805C104K5R")

	// partB already has a stock line; partA gets one created.
	existing := models.InventoryLine{
		ID:          uuid.New(),
		InventoryID: f.inventory.ID,
		PartID:      partB.ID,
		Quantity:    7,
	}
	if err := db.Create(&existing).Error; err != nil {
		t.Fatalf("seed line: %v", err)
	}

	order := f.order(t,
		models.VendorOrderLine{VendorPartID: skuA.ID, Quantity: 100, Cost: decimal.NewFromFloat(0.01), InventoryID: f.inventory.ID},
		models.VendorOrderLine{VendorPartID: skuB.ID, Quantity: 50, Cost: decimal.NewFromFloat(0.02), InventoryID: f.inventory.ID},
	)

	if err := svc.Complete(ctx, order.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	var lineA models.InventoryLine
	if err := db.First(&lineA, "inventory_id = ? AND part_id = ?", f.inventory.ID, partA.ID).Error; err != nil {
		t.Fatalf("load created line: %v", err)
	}
	if lineA.Quantity != 100 {
		t.Fatalf("expected created line at 100, got %d", lineA.Quantity)
	}

	var lineB models.InventoryLine
	if err := db.First(&lineB, "id = ?", existing.ID).Error; err != nil {
		t.Fatalf("load existing line: %v", err)
	}
	if lineB.Quantity != 57 {
		t.Fatalf("expected existing line at 57, got %d", lineB.Quantity)
	}

	var actions []models.InventoryAction
	if err := db.Where("order_line_id IS NOT NULL").Find(&actions).Error; err != nil {
		t.Fatalf("load actions: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(actions))
	}
	for _, action := range actions {
		if action.Delta != 100 && action.Delta != 50 {
			t.Fatalf("unexpected delta %d", action.Delta)
		}
		if action.BuildID != nil {
			t.Fatal("receipt action must not reference a build")
		}
	}

	var stored models.VendorOrder
	if err := db.First(&stored, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if stored.FulfilledAt == nil {
		t.Fatal("expected fulfilled timestamp")
	}
}

// The quantity write is a single relative UPDATE; it must apply on top of
// whatever the line holds at write time, not reinstate an earlier read.
func TestAdjustLineQuantityAppliesDelta(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	f := newFixture(t, db)
	repo := NewRepository(db)
	ctx := context.Background()

	part, _ := f.sku(t, "652-CR0805-10K")
	line := models.InventoryLine{
		ID:          uuid.New(),
		InventoryID: f.inventory.ID,
		PartID:      part.ID,
		Quantity:    7,
	}
	if err := db.Create(&line).Error; err != nil {
		t.Fatalf("seed line: %v", err)
	}

	if err := repo.AdjustLineQuantity(ctx, line.ID, 5); err != nil {
		t.Fatalf("grow line: %v", err)
	}
	if err := repo.AdjustLineQuantity(ctx, line.ID, -3); err != nil {
		t.Fatalf("shrink line: %v", err)
	}

	var stored models.InventoryLine
	if err := db.First(&stored, "id = ?", line.ID).Error; err != nil {
		t.Fatalf("load line: %v", err)
	}
	if stored.Quantity != 9 {
		t.Fatalf("expected 7+5-3=9, got %d", stored.Quantity)
	}
}

func TestCompleteRejectsFulfilledOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newTestService(t, db)
	ctx := context.Background()

	_, sku := f.sku(t, "512-1N4148")
	order := f.order(t,
		models.VendorOrderLine{VendorPartID: sku.ID, Quantity: 10, Cost: decimal.NewFromFloat(0.05), InventoryID: f.inventory.ID},
	)

	if err := svc.Complete(ctx, order.ID); err != nil {
		t.Fatalf("first complete: %v", err)
	}

	err := svc.Complete(ctx, order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found guard, got %v", err)
	}

	// Quantities must not double up.
	var line models.InventoryLine
	if err := db.First(&line, "inventory_id = ?", f.inventory.ID).Error; err != nil {
		t.Fatalf("load line: %v", err)
	}
	if line.Quantity != 10 {
		t.Fatalf("expected line at 10, got %d", line.Quantity)
	}
}

func TestCompleteUnknownOrderIsNotFound(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	err := svc.Complete(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
