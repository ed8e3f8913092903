package mouser

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/benchfab/circuitstock/pkg/db"
	"github.com/benchfab/circuitstock/pkg/db/models"
	"github.com/benchfab/circuitstock/pkg/enums"
	pkgerrors "github.com/benchfab/circuitstock/pkg/errors"
	"github.com/benchfab/circuitstock/pkg/pubsub"
)

// PlaceholderInput carries the BOM row fields placeholder creation needs.
type PlaceholderInput struct {
	FootprintName string
	Value         string
	Symbol        string
	ItemNumber    string
}

// PartLookup fetches catalog data from the vendor API.
type PartLookup interface {
	GetPart(ctx context.Context, partNumber string) (*CatalogPart, error)
}

// Service maintains Mouser-backed parts: placeholders created during BOM
// resolution stay off the network, enrichment fills them in out-of-band.
type Service interface {
	CreatePlaceholder(ctx context.Context, input PlaceholderInput) (*models.VendorPart, error)
	Enrich(ctx context.Context, vendorPartID uuid.UUID) error
}

type service struct {
	repo   Repository
	client PartLookup
	jobs   pubsub.JobPublisher
}

// NewService wires a Mouser catalog service with the required dependencies.
func NewService(repo Repository, client PartLookup, jobs pubsub.JobPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("mouser repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("mouser client required")
	}
	if jobs == nil {
		return nil, fmt.Errorf("job publisher required")
	}
	return &service{repo: repo, client: client, jobs: jobs}, nil
}

// Placeholder values let a SKU exist before enrichment fills it in.
var (
	placeholderCost    = decimal.NewFromFloat(0.01)
	placeholderVolume  = 1
	placeholderURLPath = "placeholder"
)

// CreatePlaceholder resolves the footprint, package and part the row
// implies, one explicit step at a time, then records a placeholder vendor
// SKU and schedules its enrichment. No vendor API call happens here.
func (s *service) CreatePlaceholder(ctx context.Context, input PlaceholderInput) (*models.VendorPart, error) {
	if input.ItemNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item number required")
	}
	if input.FootprintName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "footprint name required")
	}

	footprint, err := s.repo.GetOrCreateFootprint(ctx, input.FootprintName)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve footprint")
	}

	pkg, err := s.resolvePackage(ctx, input.FootprintName, footprint.ID)
	if err != nil {
		return nil, err
	}

	part, err := s.resolvePart(ctx, input, pkg.ID)
	if err != nil {
		return nil, err
	}

	vendor, err := s.repo.FindVendorByName(ctx, VendorName)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load mouser vendor")
	}

	cost := placeholderCost
	volume := placeholderVolume
	urlPath := placeholderURLPath
	vendorPart := &models.VendorPart{
		VendorID:   vendor.ID,
		PartID:     part.ID,
		ItemNumber: input.ItemNumber,
		Cost:       &cost,
		Volume:     &volume,
		URLPath:    &urlPath,
	}
	if err := s.repo.CreateVendorPart(ctx, vendorPart); err != nil {
		if db.IsUniqueViolation(err, "idx_vendor_item") {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "vendor part already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create vendor part")
	}
	vendorPart.Part = part

	if err := s.jobs.PublishJob(ctx, enums.JobEnrichVendorPart, vendorPart.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedule enrichment")
	}
	return vendorPart, nil
}

func (s *service) resolvePackage(ctx context.Context, footprintName string, footprintID uuid.UUID) (*models.Package, error) {
	pkg, err := s.repo.FindPackageByFootprint(ctx, footprintID)
	if err == nil {
		return pkg, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find package")
	}

	// "Resistor_THT:R_Axial_DIN0207" names the package after the colon.
	name := footprintName
	if _, after, found := strings.Cut(footprintName, ":"); found {
		name = after
	}
	pkg, err = s.repo.CreatePackageWithFootprint(ctx, name, footprintID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create package")
	}
	return pkg, nil
}

func (s *service) resolvePart(ctx context.Context, input PlaceholderInput, packageID uuid.UUID) (*models.Part, error) {
	part, err := s.repo.FindPart(ctx, input.Value, packageID, input.Symbol)
	if err == nil {
		return part, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find part")
	}

	value := input.Value
	symbol := input.Symbol
	part = &models.Part{
		Name:      "placeholder",
		Value:     &value,
		Symbol:    &symbol,
		PackageID: &packageID,
	}
	if err := s.repo.CreatePart(ctx, part); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create part")
	}
	return part, nil
}

// Enrich fills a placeholder SKU with live catalog data: detail URL,
// selected price break, and the part's name and description. Re-running
// it refreshes the same fields.
func (s *service) Enrich(ctx context.Context, vendorPartID uuid.UUID) error {
	if vendorPartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor part id required")
	}

	vendorPart, err := s.repo.FindVendorPart(ctx, vendorPartID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "vendor part not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor part")
	}

	catalogPart, err := s.client.GetPart(ctx, vendorPart.ItemNumber)
	if err != nil {
		return err
	}

	if tier, ok := SelectPriceBreak(catalogPart.PriceBreaks); ok {
		cost := tier.Cost
		volume := tier.Volume
		vendorPart.Cost = &cost
		vendorPart.Volume = &volume
	}
	urlPath := catalogPart.URLPath
	vendorPart.URLPath = &urlPath
	if err := s.repo.SaveVendorPart(ctx, vendorPart); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save vendor part")
	}

	if vendorPart.Part != nil {
		description := catalogPart.Description
		vendorPart.Part.Name = catalogPart.Name
		vendorPart.Part.Description = &description
		if err := s.repo.SavePart(ctx, vendorPart.Part); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save part")
		}
	}
	return nil
}
