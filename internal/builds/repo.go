package builds

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/benchfab/circuitstock/pkg/db/models"
)

// Repository manages persistence for builds, reservations and the
// inventory ledger entries clearance creates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindBuild(ctx context.Context, id uuid.UUID) (*models.ProjectBuild, error)
	FindBuildDetail(ctx context.Context, id uuid.UUID) (*models.ProjectBuild, error)
	SaveBuild(ctx context.Context, build *models.ProjectBuild) error

	ListVersionParts(ctx context.Context, versionID uuid.UUID) ([]models.ProjectPart, error)
	ListExcludedPartIDs(ctx context.Context, buildID uuid.UUID) ([]uuid.UUID, error)

	ListLinesForPart(ctx context.Context, partID uuid.UUID) ([]models.InventoryLine, error)
	AdjustLineQuantity(ctx context.Context, lineID uuid.UUID, delta int) error

	CreateAction(ctx context.Context, action *models.InventoryAction) error
	DeleteAction(ctx context.Context, id uuid.UUID) error

	CreateShortages(ctx context.Context, shortages []models.ProjectBuildPartShortage) error

	CreateReservation(ctx context.Context, reservation *models.ProjectBuildPartReservation) error
	ListReservations(ctx context.Context, buildID uuid.UUID) ([]models.ProjectBuildPartReservation, error)
	ListUnutilizedReservations(ctx context.Context, buildID uuid.UUID) ([]models.ProjectBuildPartReservation, error)
	DetachReservationAction(ctx context.Context, reservationID uuid.UUID) error
	DeleteReservation(ctx context.Context, id uuid.UUID) error
	MarkReservationsUtilized(ctx context.Context, buildID uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a builds repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindBuild(ctx context.Context, id uuid.UUID) (*models.ProjectBuild, error) {
	var build models.ProjectBuild
	if err := r.db.WithContext(ctx).First(&build, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &build, nil
}

func (r *repository) FindBuildDetail(ctx context.Context, id uuid.UUID) (*models.ProjectBuild, error) {
	var build models.ProjectBuild
	if err := r.db.WithContext(ctx).
		Preload("Version").
		Preload("Shortages").
		Preload("Shortages.Part").
		Preload("Reservations").
		Preload("Reservations.Action").
		First(&build, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &build, nil
}

func (r *repository) SaveBuild(ctx context.Context, build *models.ProjectBuild) error {
	return r.db.WithContext(ctx).
		Model(&models.ProjectBuild{}).
		Where("id = ?", build.ID).
		Select("cleared_at", "completed_at").
		Updates(map[string]any{
			"cleared_at":   build.ClearedAt,
			"completed_at": build.CompletedAt,
		}).Error
}

func (r *repository) ListVersionParts(ctx context.Context, versionID uuid.UUID) ([]models.ProjectPart, error) {
	var parts []models.ProjectPart
	if err := r.db.WithContext(ctx).
		Where("version_id = ?", versionID).
		Order("line_number ASC").
		Find(&parts).Error; err != nil {
		return nil, err
	}
	return parts, nil
}

func (r *repository) ListExcludedPartIDs(ctx context.Context, buildID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.ProjectBuildExcludedPart{}).
		Where("build_id = ?", buildID).
		Pluck("project_part_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListLinesForPart reads every line holding the part. On Postgres the rows
// are locked FOR UPDATE so concurrent clearances against the same part
// serialize; sqlite has no row locks and serializes at the database level.
func (r *repository) ListLinesForPart(ctx context.Context, partID uuid.UUID) ([]models.InventoryLine, error) {
	q := r.db.WithContext(ctx).Where("part_id = ?", partID).Order("quantity ASC")
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var lines []models.InventoryLine
	if err := q.Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// AdjustLineQuantity applies a signed delta in a single UPDATE so the
// write never depends on a quantity read earlier in the caller.
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

func (r *repository) DeleteAction(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.InventoryAction{}, "id = ?", id).Error
}

func (r *repository) CreateShortages(ctx context.Context, shortages []models.ProjectBuildPartShortage) error {
	if len(shortages) == 0 {
		return nil
	}
	for i := range shortages {
		if shortages[i].ID == uuid.Nil {
			shortages[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&shortages).Error
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.ProjectBuildPartReservation) error {
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) ListReservations(ctx context.Context, buildID uuid.UUID) ([]models.ProjectBuildPartReservation, error) {
	var reservations []models.ProjectBuildPartReservation
	if err := r.db.WithContext(ctx).
		Preload("Action").
		Where("build_id = ?", buildID).
		Order("created_at ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) ListUnutilizedReservations(ctx context.Context, buildID uuid.UUID) ([]models.ProjectBuildPartReservation, error) {
	var reservations []models.ProjectBuildPartReservation
	if err := r.db.WithContext(ctx).
		Preload("Action").
		Where("build_id = ? AND utilized_at IS NULL", buildID).
		Order("created_at ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) DetachReservationAction(ctx context.Context, reservationID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ProjectBuildPartReservation{}).
		Where("id = ?", reservationID).
		Update("action_id", nil).Error
}

func (r *repository) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ProjectBuildPartReservation{}, "id = ?", id).Error
}

func (r *repository) MarkReservationsUtilized(ctx context.Context, buildID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ProjectBuildPartReservation{}).
		Where("build_id = ? AND utilized_at IS NULL", buildID).
		Update("utilized_at", at).Error
}
