package bom

import (
	"context"

	"gorm.io/gorm"

	"github.com/benchfab/circuitstock/internal/vendors/mouser"
	"github.com/benchfab/circuitstock/pkg/db/models"
	pkgerrors "github.com/benchfab/circuitstock/pkg/errors"
)

// PlaceholderCreator provisions a catalog chain for a vendor SKU that is
// not in the catalog yet. Implemented by the Mouser service.
type PlaceholderCreator interface {
	CreatePlaceholder(ctx context.Context, input mouser.PlaceholderInput) (*models.VendorPart, error)
}

// Resolver maps a BOM row to a catalog part. The vendor item number is
// authoritative when present; otherwise the catalog is searched by
// value, footprint and symbol.
type Resolver struct {
	repo        Repository
	placeholder PlaceholderCreator
}

// NewResolver builds a Resolver. The placeholder creator may be nil, in
// which case unknown Mouser SKUs stay unresolved.
func NewResolver(repo Repository, placeholder PlaceholderCreator) *Resolver {
	return &Resolver{repo: repo, placeholder: placeholder}
}

// Resolve returns the matched part, or nil when the row cannot be
// resolved. A nil part with a nil error is a normal outcome recorded as
// a diagnostic, not a failure.
func (r *Resolver) Resolve(ctx context.Context, row Row) (*models.Part, error) {
	if row.VendorName != "" && row.ItemNumber != "" {
		return r.resolveVendorItem(ctx, row)
	}
	return r.repo.SearchCatalog(ctx, row.Value, row.FootprintName, row.Symbols())
}

func (r *Resolver) resolveVendorItem(ctx context.Context, row Row) (*models.Part, error) {
	vendorPart, err := r.repo.FindVendorPartByVendorItem(ctx, row.VendorName, row.ItemNumber)
	if err == nil {
		if vendorPart.Part == nil {
			return r.repo.FindPart(ctx, vendorPart.PartID)
		}
		return vendorPart.Part, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up vendor part")
	}

	// Only Mouser SKUs can be provisioned on the fly.
	if row.VendorName != mouser.VendorName || r.placeholder == nil {
		return nil, nil
	}

	symbols := row.Symbols()
	if len(symbols) == 0 {
		return nil, nil
	}
	created, err := r.placeholder.CreatePlaceholder(ctx, mouser.PlaceholderInput{
		FootprintName: row.FootprintName,
		Value:         row.Value,
		Symbol:        symbols[0],
		ItemNumber:    row.ItemNumber,
	})
	if err != nil {
		return nil, err
	}
	if created.Part != nil {
		return created.Part, nil
	}
	return r.repo.FindPart(ctx, created.PartID)
}
