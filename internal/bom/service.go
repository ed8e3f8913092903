package bom

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchfab/circuitstock/pkg/config"
	"github.com/benchfab/circuitstock/pkg/db/models"
	pkgerrors "github.com/benchfab/circuitstock/pkg/errors"
)

// SyncResult reports what one sync pass did. Diagnostics groups line
// numbers by issue, e.g. "part_missing" for rows no catalog part
// matched.
type SyncResult struct {
	VersionID   uuid.UUID        `json:"version_id"`
	Rows        int              `json:"rows"`
	Resolved    int              `json:"resolved"`
	Diagnostics map[string][]int `json:"diagnostics,omitempty"`
}

// DiagnosticPartMissing marks rows that stayed unresolved after lookup.
const DiagnosticPartMissing = "part_missing"

// Service synchronizes project versions against the BOM file in their
// git repository.
type Service interface {
	Sync(ctx context.Context, versionID uuid.UUID) (*SyncResult, error)
}

type service struct {
	repo     Repository
	resolver *Resolver
	client   *http.Client
}

// NewService builds the sync service. All dependencies are required.
func NewService(repo Repository, resolver *Resolver, cfg config.SyncConfig) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bom service requires a repository")
	}
	if resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bom service requires a resolver")
	}
	return &service{
		repo:     repo,
		resolver: resolver,
		client:   &http.Client{Timeout: cfg.FetchTimeout},
	}, nil
}

// Sync fetches the version's BOM from git, reconciles every row into
// project parts, expands implicit accessories, and removes rows that
// disappeared from the file. Unresolvable rows are kept as diagnostics
// rather than failing the pass.
func (s *service) Sync(ctx context.Context, versionID uuid.UUID) (*SyncResult, error) {
	version, err := s.repo.FindVersion(ctx, versionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project version not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load project version")
	}
	if version.Project == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "project version has no project")
	}

	rows, err := s.fetchRows(ctx, version)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{
		VersionID:   versionID,
		Rows:        len(rows),
		Diagnostics: map[string][]int{},
	}

	touched := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		partIDs, err := s.syncRow(ctx, version.ID, row, result)
		if err != nil {
			return nil, err
		}
		touched = append(touched, partIDs...)
	}

	if err := s.repo.DeleteUntouchedRows(ctx, version.ID, touched); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete removed bom rows")
	}
	if err := s.repo.StampSynced(ctx, version.ID, time.Now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stamp version synced")
	}

	for _, lines := range result.Diagnostics {
		sort.Ints(lines)
	}
	if len(result.Diagnostics) == 0 {
		result.Diagnostics = nil
	}
	return result, nil
}

// syncRow upserts one explicit row plus its implicit expansion, and
// returns every project part ID it touched.
func (s *service) syncRow(ctx context.Context, versionID uuid.UUID, row Row, result *SyncResult) ([]uuid.UUID, error) {
	part, err := s.resolver.Resolve(ctx, row)
	if err != nil {
		return nil, err
	}

	var partID *uuid.UUID
	var missing *string
	if part != nil {
		partID = &part.ID
		result.Resolved++
	} else {
		summary := row.Summary()
		missing = &summary
		result.Diagnostics[DiagnosticPartMissing] = append(result.Diagnostics[DiagnosticPartMissing], row.LineNumber)
	}

	record, err := s.repo.UpsertRow(ctx, versionID, row, partID, missing)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert bom row")
	}
	if err := s.repo.SyncRefs(ctx, record.ID, row.References); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sync reference designators")
	}

	touched := []uuid.UUID{record.ID}

	implicitIDs, err := s.syncImplicit(ctx, versionID, row, part)
	if err != nil {
		return nil, err
	}
	return append(touched, implicitIDs...), nil
}

// syncImplicit materializes accessory rows demanded by the resolved
// part's package, scaled by the explicit row quantity. Rules that no
// longer apply on this line are removed.
func (s *service) syncImplicit(ctx context.Context, versionID uuid.UUID, row Row, part *models.Part) ([]uuid.UUID, error) {
	var keep []uuid.UUID
	if part != nil && part.PackageID != nil {
		rules, err := s.repo.ListImplicitRules(ctx, *part.PackageID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list implicit part rules")
		}
		for _, rule := range rules {
			record, err := s.repo.UpsertImplicitRow(ctx, versionID, row.LineNumber, rule.PartID, rule.Quantity*row.Quantity)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert implicit bom row")
			}
			keep = append(keep, record.ID)
		}
	}
	if err := s.repo.DeleteStaleImplicitRows(ctx, versionID, row.LineNumber, keep); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete stale implicit rows")
	}
	return keep, nil
}

func (s *service) fetchRows(ctx context.Context, version *models.ProjectVersion) ([]Row, error) {
	url := buildBOMURL(version.Project.GitURL, version.CommitRef, version.BOMPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build bom request")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch bom file")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("bom fetch returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read bom response")
	}
	return ParseRows(bytes.NewReader(body))
}

// buildBOMURL composes the raw-file URL a forge serves for a committed
// path, e.g. https://git.example.com/boards/widget/raw/<ref>/<path>.
func buildBOMURL(gitURL, commitRef, bomPath string) string {
	base := strings.TrimRight(gitURL, "/")
	path := strings.TrimLeft(bomPath, "/")
	return base + "/raw/" + commitRef + "/" + path
}
