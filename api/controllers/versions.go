package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/benchfab/circuitstock/api/responses"
	"github.com/benchfab/circuitstock/api/validators"
	"github.com/benchfab/circuitstock/internal/bom"
	"github.com/benchfab/circuitstock/pkg/db/models"
	"github.com/benchfab/circuitstock/pkg/enums"
	pkgerrors "github.com/benchfab/circuitstock/pkg/errors"
	"github.com/benchfab/circuitstock/pkg/logger"
	"github.com/benchfab/circuitstock/pkg/pubsub"
)

// VersionSync schedules a BOM synchronization pass for the version.
func VersionSync(jobs pubsub.JobPublisher, logg *logger.Logger) http.HandlerFunc {
	return scheduleJob(jobs, enums.JobSyncVersion, logg)
}

type createVersionRequest struct {
	Revision  int              `json:"revision" validate:"min=0"`
	CommitRef string           `json:"commit_ref" validate:"required,max=64"`
	BOMPath   string           `json:"bom_path" validate:"required,max=100"`
	PCBURL    *string          `json:"pcb_url,omitempty" validate:"omitempty,url"`
	PCBCost   *decimal.Decimal `json:"pcb_cost,omitempty"`
}

// VersionCreate records a new pinned version of a project. Rows are
// populated later by the sync job.
func VersionCreate(repo bom.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid project id"))
			return
		}

		var req createVersionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := repo.FindProject(r.Context(), projectID); err != nil {
			if err == gorm.ErrRecordNotFound {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "project not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project"))
			return
		}

		version := models.ProjectVersion{
			ProjectID: projectID,
			Revision:  req.Revision,
			CommitRef: validators.SanitizeString(req.CommitRef, 64),
			BOMPath:   validators.SanitizeString(req.BOMPath, 100),
			PCBURL:    req.PCBURL,
			PCBCost:   req.PCBCost,
		}
		if err := repo.CreateVersion(r.Context(), &version); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create version"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, version)
	}
}

type versionRowView struct {
	LineNumber int             `json:"line_number"`
	Quantity   int             `json:"quantity"`
	IsImplicit bool            `json:"is_implicit"`
	IsOptional bool            `json:"is_optional"`
	PartID     *uuid.UUID      `json:"part_id,omitempty"`
	PartName   string          `json:"part_name,omitempty"`
	Missing    *string         `json:"missing_part_description,omitempty"`
	Refs       []string        `json:"refs,omitempty"`
	LineCost   decimal.Decimal `json:"line_cost"`
}

type versionDetailView struct {
	ID          uuid.UUID        `json:"id"`
	ProjectName string           `json:"project_name"`
	Revision    int              `json:"revision"`
	CommitRef   string           `json:"commit_ref"`
	BOMPath     string           `json:"bom_path"`
	SyncedAt    any              `json:"synced_at"`
	Rows        []versionRowView `json:"rows"`
	PCBUnitCost decimal.Decimal  `json:"pcb_unit_cost"`
	TotalCost   decimal.Decimal  `json:"total_cost"`
}

// VersionGet returns the synced rows of a version with the cost rollup.
func VersionGet(repo bom.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid version id"))
			return
		}

		version, err := repo.FindVersionDetail(r.Context(), id)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "project version not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load version"))
			return
		}

		responses.WriteSuccess(w, buildVersionView(version))
	}
}

func buildVersionView(version *models.ProjectVersion) versionDetailView {
	view := versionDetailView{
		ID:          version.ID,
		Revision:    version.Revision,
		CommitRef:   version.CommitRef,
		BOMPath:     version.BOMPath,
		SyncedAt:    version.SyncedAt,
		PCBUnitCost: version.PCBUnitCost(),
		TotalCost:   version.TotalCost(),
	}
	if version.Project != nil {
		view.ProjectName = version.Project.Name
	}
	for i := range version.Parts {
		row := &version.Parts[i]
		rowView := versionRowView{
			LineNumber: row.LineNumber,
			Quantity:   row.Quantity,
			IsImplicit: row.IsImplicit,
			IsOptional: row.IsOptional,
			PartID:     row.PartID,
			Missing:    row.MissingPartDescription,
			LineCost:   row.LineCost(),
		}
		if row.Part != nil {
			rowView.PartName = row.Part.Name
		}
		for _, ref := range row.Refs {
			rowView.Refs = append(rowView.Refs, ref.Ref)
		}
		view.Rows = append(view.Rows, rowView)
	}
	return view
}
