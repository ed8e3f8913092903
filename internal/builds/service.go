package builds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchfab/circuitstock/internal/allocation"
	"github.com/benchfab/circuitstock/pkg/db/models"
	pkgerrors "github.com/benchfab/circuitstock/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Shortfall is the unmet demand for one part in a failed clearance attempt.
type Shortfall struct {
	PartID   uuid.UUID `json:"part_id"`
	Quantity int       `json:"quantity"`
}

// Service drives the build lifecycle: planned, cleared, completed.
type Service interface {
	Clear(ctx context.Context, buildID uuid.UUID) ([]models.ProjectBuildPartReservation, error)
	Complete(ctx context.Context, buildID uuid.UUID) error
	Cancel(ctx context.Context, buildID uuid.UUID) error
	Get(ctx context.Context, buildID uuid.UUID) (*models.ProjectBuild, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService wires a builds service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("builds repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// Clear reserves inventory for every part the build demands. The whole
// clearance is one transaction: either every line is depleted and every
// reservation created, or nothing is. A failed attempt still persists its
// shortage snapshot before the insufficient-inventory error is returned.
func (s *service) Clear(ctx context.Context, buildID uuid.UUID) ([]models.ProjectBuildPartReservation, error) {
	if buildID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "build id required")
	}

	var reservations []models.ProjectBuildPartReservation
	var shortfalls []Shortfall
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		build, err := loadBuild(ctx, repo, buildID)
		if err != nil {
			return err
		}
		if build.CompletedAt != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "build already completed")
		}
		reservations, shortfalls, err = s.clearLocked(ctx, repo, build)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(shortfalls) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientInventory, "inventory cannot cover build demand").
			WithDetails(shortfalls)
	}
	return reservations, nil
}

// Complete stamps every reservation utilized and marks the build done.
// An uncleared build is cleared first within the same transaction.
// Completing an already-completed build is a no-op.
func (s *service) Complete(ctx context.Context, buildID uuid.UUID) error {
	if buildID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "build id required")
	}

	var shortfalls []Shortfall
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		build, err := loadBuild(ctx, repo, buildID)
		if err != nil {
			return err
		}
		if build.CompletedAt != nil {
			return nil
		}

		_, sf, err := s.clearLocked(ctx, repo, build)
		if err != nil {
			return err
		}
		if len(sf) > 0 {
			shortfalls = sf
			return nil
		}

		now := time.Now().UTC()
		if err := repo.MarkReservationsUtilized(ctx, build.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark reservations utilized")
		}
		build.CompletedAt = &now
		if err := repo.SaveBuild(ctx, build); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save build")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(shortfalls) > 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientInventory, "inventory cannot cover build demand").
			WithDetails(shortfalls)
	}
	return nil
}

// Cancel reverses a cleared build back to planned: every reservation's
// action is detached, its depletion restored to the line, and both records
// deleted. Completed builds are rejected.
func (s *service) Cancel(ctx context.Context, buildID uuid.UUID) error {
	if buildID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "build id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		build, err := loadBuild(ctx, repo, buildID)
		if err != nil {
			return err
		}
		if build.CompletedAt != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "completed build cannot be cancelled")
		}

		reservations, err := repo.ListReservations(ctx, build.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
		}

		for _, reservation := range reservations {
			if reservation.ActionID != nil {
				action := reservation.Action
				if action == nil {
					return pkgerrors.New(pkgerrors.CodeInternal, "reservation missing its action")
				}
				if err := repo.DetachReservationAction(ctx, reservation.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach reservation action")
				}
				// Delta is negative for a depletion; adding back the
				// negated delta restores whatever the line holds now.
				if err := repo.AdjustLineQuantity(ctx, action.LineID, -action.Delta); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore line quantity")
				}
				if err := repo.DeleteAction(ctx, action.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete inventory action")
				}
			}
			if err := repo.DeleteReservation(ctx, reservation.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete reservation")
			}
		}

		build.ClearedAt = nil
		if err := repo.SaveBuild(ctx, build); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save build")
		}
		return nil
	})
}

// Get loads a build with its version, shortages and reservations.
func (s *service) Get(ctx context.Context, buildID uuid.UUID) (*models.ProjectBuild, error) {
	if buildID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "build id required")
	}
	build, err := s.repo.FindBuildDetail(ctx, buildID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "build not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load build")
	}
	return build, nil
}

// clearLocked performs clearance inside the caller's transaction. Already
// cleared builds return their unutilized reservations unchanged. A
// shortage returns the shortfall list with a nil error so the snapshot
// rows commit; the caller converts it into the business error after.
func (s *service) clearLocked(ctx context.Context, repo Repository, build *models.ProjectBuild) ([]models.ProjectBuildPartReservation, []Shortfall, error) {
	if build.ClearedAt != nil {
		reservations, err := repo.ListUnutilizedReservations(ctx, build.ID)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
		}
		return reservations, nil, nil
	}

	demand, order, err := s.consolidateDemand(ctx, repo, build)
	if err != nil {
		return nil, nil, err
	}

	attemptID := uuid.New()
	plans := make(map[uuid.UUID]allocation.Plan, len(order))
	var shortages []models.ProjectBuildPartShortage
	var shortfalls []Shortfall
	for _, partID := range order {
		lines, err := repo.ListLinesForPart(ctx, partID)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory lines")
		}
		plan := allocation.Build(lines, demand[partID])
		if !plan.Fulfilled() {
			shortages = append(shortages, models.ProjectBuildPartShortage{
				BuildID:   build.ID,
				PartID:    partID,
				Quantity:  plan.Unfulfilled,
				AttemptID: attemptID,
			})
			shortfalls = append(shortfalls, Shortfall{PartID: partID, Quantity: plan.Unfulfilled})
			continue
		}
		plans[partID] = plan
	}

	if len(shortfalls) > 0 {
		if err := repo.CreateShortages(ctx, shortages); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record shortages")
		}
		return nil, shortfalls, nil
	}

	var reservations []models.ProjectBuildPartReservation
	for _, partID := range order {
		for _, depletion := range plans[partID].Depletions {
			action := &models.InventoryAction{
				LineID:  depletion.Line.ID,
				Delta:   -depletion.Quantity,
				BuildID: &build.ID,
			}
			if err := repo.CreateAction(ctx, action); err != nil {
				return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory action")
			}
			if err := repo.AdjustLineQuantity(ctx, depletion.Line.ID, -depletion.Quantity); err != nil {
				return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deplete inventory line")
			}
			reservation := &models.ProjectBuildPartReservation{
				BuildID:  build.ID,
				ActionID: &action.ID,
			}
			if err := repo.CreateReservation(ctx, reservation); err != nil {
				return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
			}
			reservations = append(reservations, *reservation)
		}
	}

	now := time.Now().UTC()
	build.ClearedAt = &now
	if err := repo.SaveBuild(ctx, build); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save build")
	}
	return reservations, nil, nil
}

// consolidateDemand sums quantity times build quantity across the
// version's parts, grouped by resolved part. Optional parts the build
// excludes are skipped; exclusions are read fresh on every attempt. An
// unresolved row fails the clearance.
func (s *service) consolidateDemand(ctx context.Context, repo Repository, build *models.ProjectBuild) (map[uuid.UUID]int, []uuid.UUID, error) {
	parts, err := repo.ListVersionParts(ctx, build.VersionID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list version parts")
	}
	excludedIDs, err := repo.ListExcludedPartIDs(ctx, build.ID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list excluded parts")
	}
	excluded := make(map[uuid.UUID]struct{}, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = struct{}{}
	}

	demand := make(map[uuid.UUID]int)
	var order []uuid.UUID
	for _, part := range parts {
		if part.IsOptional {
			if _, skip := excluded[part.ID]; skip {
				continue
			}
		}
		if part.PartID == nil {
			return nil, nil, pkgerrors.New(pkgerrors.CodeUnresolvedPart,
				fmt.Sprintf("bom line %d has no resolved part", part.LineNumber))
		}
		if _, seen := demand[*part.PartID]; !seen {
			order = append(order, *part.PartID)
		}
		demand[*part.PartID] += part.Quantity * build.Quantity
	}
	return demand, order, nil
}

func loadBuild(ctx context.Context, repo Repository, buildID uuid.UUID) (*models.ProjectBuild, error) {
	build, err := repo.FindBuild(ctx, buildID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "build not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load build")
	}
	return build, nil
}
