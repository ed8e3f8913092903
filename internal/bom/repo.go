package bom

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchfab/circuitstock/pkg/db/models"
)

// Repository manages persistence for BOM sync: version rows, reference
// designators, implicit expansion and catalog matching.
type Repository interface {
	FindProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	CreateVersion(ctx context.Context, version *models.ProjectVersion) error
	FindVersion(ctx context.Context, id uuid.UUID) (*models.ProjectVersion, error)
	FindVersionDetail(ctx context.Context, id uuid.UUID) (*models.ProjectVersion, error)
	StampSynced(ctx context.Context, versionID uuid.UUID, at time.Time) error

	UpsertRow(ctx context.Context, versionID uuid.UUID, row Row, partID *uuid.UUID, missingDescription *string) (*models.ProjectPart, error)
	DeleteUntouchedRows(ctx context.Context, versionID uuid.UUID, touchedIDs []uuid.UUID) error
	SyncRefs(ctx context.Context, projectPartID uuid.UUID, refs []string) error

	FindPart(ctx context.Context, id uuid.UUID) (*models.Part, error)
	ListImplicitRules(ctx context.Context, packageID uuid.UUID) ([]models.ImplicitProjectPart, error)
	UpsertImplicitRow(ctx context.Context, versionID uuid.UUID, lineNumber int, partID uuid.UUID, quantity int) (*models.ProjectPart, error)
	DeleteStaleImplicitRows(ctx context.Context, versionID uuid.UUID, lineNumber int, keepIDs []uuid.UUID) error

	FindVendorPartByVendorItem(ctx context.Context, vendorName, itemNumber string) (*models.VendorPart, error)
	SearchCatalog(ctx context.Context, value, footprintName string, symbols []string) (*models.Part, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a BOM repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *repository) CreateVersion(ctx context.Context, version *models.ProjectVersion) error {
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(version).Error
}

func (r *repository) FindVersion(ctx context.Context, id uuid.UUID) (*models.ProjectVersion, error) {
	var version models.ProjectVersion
	if err := r.db.WithContext(ctx).
		Preload("Project").
		First(&version, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &version, nil
}

// FindVersionDetail loads the version with everything the cost rollup
// needs: rows, their refs, and each part's vendor SKUs.
func (r *repository) FindVersionDetail(ctx context.Context, id uuid.UUID) (*models.ProjectVersion, error) {
	var version models.ProjectVersion
	if err := r.db.WithContext(ctx).
		Preload("Project").
		Preload("Parts", func(db *gorm.DB) *gorm.DB {
			return db.Order("project_parts.line_number, project_parts.is_implicit")
		}).
		Preload("Parts.Refs").
		Preload("Parts.Part").
		Preload("Parts.Part.VendorParts").
		First(&version, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *repository) StampSynced(ctx context.Context, versionID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ProjectVersion{}).
		Where("id = ?", versionID).
		Update("synced_at", at).Error
}

// UpsertRow updates the explicit row keyed (version, line number) in
// place, or creates it. Resolution state is overwritten both ways: a row
// that resolves clears its stale missing description, one that stops
// resolving drops its part reference.
func (r *repository) UpsertRow(ctx context.Context, versionID uuid.UUID, row Row, partID *uuid.UUID, missingDescription *string) (*models.ProjectPart, error) {
	var existing models.ProjectPart
	err := r.db.WithContext(ctx).
		Where("version_id = ? AND line_number = ? AND is_implicit = ?", versionID, row.LineNumber, false).
		First(&existing).Error
	if err == nil {
		updates := map[string]any{
			"part_id":                  partID,
			"quantity":                 row.Quantity,
			"missing_part_description": missingDescription,
		}
		if err := r.db.WithContext(ctx).
			Model(&models.ProjectPart{}).
			Where("id = ?", existing.ID).
			Updates(updates).Error; err != nil {
			return nil, err
		}
		existing.PartID = partID
		existing.Quantity = row.Quantity
		existing.MissingPartDescription = missingDescription
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	created := models.ProjectPart{
		ID:                     uuid.New(),
		VersionID:              versionID,
		PartID:                 partID,
		MissingPartDescription: missingDescription,
		LineNumber:             row.LineNumber,
		Quantity:               row.Quantity,
	}
	if err := r.db.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *repository) DeleteUntouchedRows(ctx context.Context, versionID uuid.UUID, touchedIDs []uuid.UUID) error {
	q := r.db.WithContext(ctx).
		Where("version_id = ? AND is_implicit = ?", versionID, false)
	if len(touchedIDs) > 0 {
		q = q.Where("id NOT IN ?", touchedIDs)
	}
	return q.Delete(&models.ProjectPart{}).Error
}

// SyncRefs reconciles reference designators for one row: rows no longer
// present are deleted, missing ones created.
func (r *repository) SyncRefs(ctx context.Context, projectPartID uuid.UUID, refs []string) error {
	q := r.db.WithContext(ctx).Where("project_part_id = ?", projectPartID)
	if len(refs) > 0 {
		q = q.Where("ref NOT IN ?", refs)
	}
	if err := q.Delete(&models.ProjectPartRef{}).Error; err != nil {
		return err
	}

	for _, ref := range refs {
		var existing models.ProjectPartRef
		err := r.db.WithContext(ctx).
			Where("project_part_id = ? AND ref = ?", projectPartID, ref).
			First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		record := models.ProjectPartRef{ID: uuid.New(), ProjectPartID: projectPartID, Ref: ref}
		if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) FindPart(ctx context.Context, id uuid.UUID) (*models.Part, error) {
	var part models.Part
	if err := r.db.WithContext(ctx).First(&part, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &part, nil
}

func (r *repository) ListImplicitRules(ctx context.Context, packageID uuid.UUID) ([]models.ImplicitProjectPart, error) {
	var rules []models.ImplicitProjectPart
	if err := r.db.WithContext(ctx).
		Where("for_package_id = ?", packageID).
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// UpsertImplicitRow is keyed by part as well as line number: one BOM row
// can expand to several accessories on the same line.
func (r *repository) UpsertImplicitRow(ctx context.Context, versionID uuid.UUID, lineNumber int, partID uuid.UUID, quantity int) (*models.ProjectPart, error) {
	var existing models.ProjectPart
	err := r.db.WithContext(ctx).
		Where("version_id = ? AND line_number = ? AND is_implicit = ? AND part_id = ?",
			versionID, lineNumber, true, partID).
		First(&existing).Error
	if err == nil {
		if existing.Quantity != quantity {
			if err := r.db.WithContext(ctx).
				Model(&models.ProjectPart{}).
				Where("id = ?", existing.ID).
				Update("quantity", quantity).Error; err != nil {
				return nil, err
			}
			existing.Quantity = quantity
		}
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	created := models.ProjectPart{
		ID:         uuid.New(),
		VersionID:  versionID,
		PartID:     &partID,
		LineNumber: lineNumber,
		Quantity:   quantity,
		IsImplicit: true,
	}
	if err := r.db.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *repository) DeleteStaleImplicitRows(ctx context.Context, versionID uuid.UUID, lineNumber int, keepIDs []uuid.UUID) error {
	q := r.db.WithContext(ctx).
		Where("version_id = ? AND line_number = ? AND is_implicit = ?", versionID, lineNumber, true)
	if len(keepIDs) > 0 {
		q = q.Where("id NOT IN ?", keepIDs)
	}
	return q.Delete(&models.ProjectPart{}).Error
}

func (r *repository) FindVendorPartByVendorItem(ctx context.Context, vendorName, itemNumber string) (*models.VendorPart, error) {
	var vendorPart models.VendorPart
	if err := r.db.WithContext(ctx).
		Preload("Part").
		Joins("JOIN vendors ON vendors.id = vendor_parts.vendor_id").
		Where("vendors.name = ? AND vendor_parts.item_number = ?", vendorName, itemNumber).
		First(&vendorPart).Error; err != nil {
		return nil, err
	}
	return &vendorPart, nil
}

// SearchCatalog ranks candidate parts by total stock across
// non-deprioritized lines, excluding parts whose stock lines are all
// deprioritized. Parts with no stock at all stay eligible at rank zero.
func (r *repository) SearchCatalog(ctx context.Context, value, footprintName string, symbols []string) (*models.Part, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Part{}).
		Select("parts.id").
		Joins("JOIN package_footprints ON package_footprints.package_id = parts.package_id").
		Joins("JOIN footprints ON footprints.id = package_footprints.footprint_id").
		Joins("LEFT JOIN inventory_lines ON inventory_lines.part_id = parts.id").
		Where("parts.value = ? AND footprints.name = ? AND parts.symbol IN ?", value, footprintName, symbols).
		Group("parts.id").
		Having("COUNT(inventory_lines.id) = 0 OR SUM(CASE WHEN inventory_lines.deprioritized THEN 0 ELSE 1 END) > 0").
		Order("COALESCE(SUM(CASE WHEN inventory_lines.deprioritized THEN 0 ELSE inventory_lines.quantity END), 0) DESC").
		Pluck("parts.id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return r.FindPart(ctx, ids[0])
}
