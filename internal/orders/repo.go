package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchfab/circuitstock/pkg/db/models"
)

// Repository manages persistence for vendor orders and the inventory
// records their fulfillment touches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, id uuid.UUID) (*models.VendorOrder, error)
	SaveOrder(ctx context.Context, order *models.VendorOrder) error
	GetOrCreateLine(ctx context.Context, inventoryID, partID uuid.UUID) (*models.InventoryLine, error)
	AdjustLineQuantity(ctx context.Context, lineID uuid.UUID, delta int) error
	CreateAction(ctx context.Context, action *models.InventoryAction) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.VendorOrder, error) {
	var order models.VendorOrder
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Lines.VendorPart").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) SaveOrder(ctx context.Context, order *models.VendorOrder) error {
	return r.db.WithContext(ctx).
		Model(&models.VendorOrder{}).
		Where("id = ?", order.ID).
		Update("fulfilled_at", order.FulfilledAt).Error
}

func (r *repository) GetOrCreateLine(ctx context.Context, inventoryID, partID uuid.UUID) (*models.InventoryLine, error) {
	var line models.InventoryLine
	err := r.db.WithContext(ctx).
		Where("inventory_id = ? AND part_id = ?", inventoryID, partID).
		First(&line).Error
	if err == nil {
		return &line, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	line = models.InventoryLine{
		ID:          uuid.New(),
		InventoryID: inventoryID,
		PartID:      partID,
	}
	if err := r.db.WithContext(ctx).Create(&line).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

// AdjustLineQuantity applies a signed delta in a single UPDATE so a
// receipt never overwrites concurrent changes to the same line.
func (r *repository) AdjustLineQuantity(ctx context.Context, lineID uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryLine{}).
		Where("id = ?", lineID).
		Update("quantity", gorm.Expr("quantity + ?", delta)).Error
}

func (r *repository) CreateAction(ctx context.Context, action *models.InventoryAction) error {
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(action).Error
}
