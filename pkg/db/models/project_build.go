package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectBuild is a request to produce Quantity units of a version. The
// cleared/completed timestamps define its lifecycle: planned (both null),
// cleared, then completed. Completed is terminal.
type ProjectBuild struct {
	ID            uuid.UUID                     `gorm:"column:id;type:uuid;primaryKey"`
	VersionID     uuid.UUID                     `gorm:"column:version_id;type:uuid;not null"`
	Version       *ProjectVersion               `gorm:"foreignKey:VersionID"`
	Quantity      int                           `gorm:"column:quantity;not null"`
	ClearedAt     *time.Time                    `gorm:"column:cleared_at"`
	CompletedAt   *time.Time                    `gorm:"column:completed_at"`
	Shortages     []ProjectBuildPartShortage    `gorm:"foreignKey:BuildID;constraint:OnDelete:CASCADE"`
	Reservations  []ProjectBuildPartReservation `gorm:"foreignKey:BuildID;constraint:OnDelete:CASCADE"`
	ExcludedParts []ProjectBuildExcludedPart    `gorm:"foreignKey:BuildID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time                     `gorm:"column:created_at;autoCreateTime"`
}

// ProjectBuildPartShortage snapshots unmet demand for one part at a
// specific failed clearance attempt. Attempts are not deduplicated.
type ProjectBuildPartShortage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BuildID   uuid.UUID `gorm:"column:build_id;type:uuid;not null;index"`
	PartID    uuid.UUID `gorm:"column:part_id;type:uuid;not null"`
	Part      *Part     `gorm:"foreignKey:PartID"`
	Quantity  int       `gorm:"column:quantity;not null"`
	AttemptID uuid.UUID `gorm:"column:attempt_id;type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// ProjectBuildPartReservation is a build's claim on one ledger entry.
// It owns at most one InventoryAction; the action must be detached and
// reversed before the reservation may be deleted. Utilized is stamped
// when the build completes.
type ProjectBuildPartReservation struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	BuildID    uuid.UUID        `gorm:"column:build_id;type:uuid;not null;index"`
	ActionID   *uuid.UUID       `gorm:"column:action_id;type:uuid"`
	Action     *InventoryAction `gorm:"foreignKey:ActionID"`
	UtilizedAt *time.Time       `gorm:"column:utilized_at"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
}

// ProjectBuildExcludedPart marks an optional project part that this build
// omits from demand consolidation. Exclusions are re-evaluated on every
// clearance attempt.
type ProjectBuildExcludedPart struct {
	BuildID       uuid.UUID `gorm:"column:build_id;type:uuid;primaryKey"`
	ProjectPartID uuid.UUID `gorm:"column:project_part_id;type:uuid;primaryKey"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
