package enums

// CircuitTechnology distinguishes how a package mounts to the board.
type CircuitTechnology string

const (
	TechnologyThroughHole  CircuitTechnology = "through_hole"
	TechnologySurfaceMount CircuitTechnology = "surface_mount"
	TechnologyUnknown      CircuitTechnology = "unknown"
)

// IsValid reports whether the value is a known technology.
func (t CircuitTechnology) IsValid() bool {
	switch t {
	case TechnologyThroughHole, TechnologySurfaceMount, TechnologyUnknown:
		return true
	default:
		return false
	}
}

// Label returns the short form used on schematics and BOMs.
func (t CircuitTechnology) Label() string {
	switch t {
	case TechnologyThroughHole:
		return "THT"
	case TechnologySurfaceMount:
		return "SMD"
	default:
		return ""
	}
}
