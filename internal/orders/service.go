package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchfab/circuitstock/pkg/db/models"
	pkgerrors "github.com/benchfab/circuitstock/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service folds received vendor orders into inventory.
type Service interface {
	Complete(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService wires an orders service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// Complete books every line of the order into its target inventory: the
// (inventory, part) line is created on first receipt, a positive ledger
// action tagged to the order line records the receipt, and the line
// quantity grows by the received amount. The order is then stamped
// fulfilled. A fulfilled order cannot be completed again.
func (s *service) Complete(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.FulfilledAt != nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order already fulfilled")
		}

		for i := range order.Lines {
			if err := s.completeLine(ctx, repo, &order.Lines[i]); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		order.FulfilledAt = &now
		if err := repo.SaveOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}
		return nil
	})
}

func (s *service) completeLine(ctx context.Context, repo Repository, orderLine *models.VendorOrderLine) error {
	if orderLine.VendorPart == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "order line missing vendor part")
	}

	line, err := repo.GetOrCreateLine(ctx, orderLine.InventoryID, orderLine.VendorPart.PartID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve inventory line")
	}

	action := &models.InventoryAction{
		LineID:      line.ID,
		Delta:       orderLine.Quantity,
		OrderLineID: &orderLine.ID,
	}
	if err := repo.CreateAction(ctx, action); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory action")
	}

	if err := repo.AdjustLineQuantity(ctx, line.ID, orderLine.Quantity); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grow inventory line")
	}
	return nil
}
