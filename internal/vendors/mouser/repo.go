package mouser

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchfab/circuitstock/pkg/db/models"
	"github.com/benchfab/circuitstock/pkg/enums"
)

// Repository manages the catalog records automated lookup creates.
type Repository interface {
	GetOrCreateFootprint(ctx context.Context, name string) (*models.Footprint, error)
	FindPackageByFootprint(ctx context.Context, footprintID uuid.UUID) (*models.Package, error)
	CreatePackageWithFootprint(ctx context.Context, name string, footprintID uuid.UUID) (*models.Package, error)
	FindPart(ctx context.Context, value string, packageID uuid.UUID, symbol string) (*models.Part, error)
	CreatePart(ctx context.Context, part *models.Part) error
	SavePart(ctx context.Context, part *models.Part) error
	FindVendorByName(ctx context.Context, name string) (*models.Vendor, error)
	FindVendorPart(ctx context.Context, id uuid.UUID) (*models.VendorPart, error)
	CreateVendorPart(ctx context.Context, vendorPart *models.VendorPart) error
	SaveVendorPart(ctx context.Context, vendorPart *models.VendorPart) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetOrCreateFootprint(ctx context.Context, name string) (*models.Footprint, error) {
	var footprint models.Footprint
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&footprint).Error
	if err == nil {
		return &footprint, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	footprint = models.Footprint{ID: uuid.New(), Name: name}
	if err := r.db.WithContext(ctx).Create(&footprint).Error; err != nil {
		return nil, err
	}
	return &footprint, nil
}

func (r *repository) FindPackageByFootprint(ctx context.Context, footprintID uuid.UUID) (*models.Package, error) {
	var pkg models.Package
	if err := r.db.WithContext(ctx).
		Joins("JOIN package_footprints ON package_footprints.package_id = packages.id").
		Where("package_footprints.footprint_id = ?", footprintID).
		First(&pkg).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *repository) CreatePackageWithFootprint(ctx context.Context, name string, footprintID uuid.UUID) (*models.Package, error) {
	pkg := models.Package{
		ID:         uuid.New(),
		Technology: enums.TechnologyUnknown,
		Name:       name,
	}
	if err := r.db.WithContext(ctx).Create(&pkg).Error; err != nil {
		return nil, err
	}
	join := map[string]any{"package_id": pkg.ID, "footprint_id": footprintID}
	if err := r.db.WithContext(ctx).Table("package_footprints").Create(join).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *repository) FindPart(ctx context.Context, value string, packageID uuid.UUID, symbol string) (*models.Part, error) {
	var part models.Part
	if err := r.db.WithContext(ctx).
		Where("value = ? AND package_id = ? AND symbol = ?", value, packageID, symbol).
		First(&part).Error; err != nil {
		return nil, err
	}
	return &part, nil
}

func (r *repository) CreatePart(ctx context.Context, part *models.Part) error {
	if part.ID == uuid.Nil {
		part.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(part).Error
}

func (r *repository) SavePart(ctx context.Context, part *models.Part) error {
	return r.db.WithContext(ctx).Save(part).Error
}

func (r *repository) FindVendorByName(ctx context.Context, name string) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) FindVendorPart(ctx context.Context, id uuid.UUID) (*models.VendorPart, error) {
	var vendorPart models.VendorPart
	if err := r.db.WithContext(ctx).
		Preload("Part").
		First(&vendorPart, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vendorPart, nil
}

func (r *repository) CreateVendorPart(ctx context.Context, vendorPart *models.VendorPart) error {
	if vendorPart.ID == uuid.Nil {
		vendorPart.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(vendorPart).Error
}

func (r *repository) SaveVendorPart(ctx context.Context, vendorPart *models.VendorPart) error {
	return r.db.WithContext(ctx).
		Model(&models.VendorPart{}).
		Where("id = ?", vendorPart.ID).
		Updates(map[string]any{
			"cost":     vendorPart.Cost,
			"volume":   vendorPart.Volume,
			"url_path": vendorPart.URLPath,
		}).Error
}
