package enums

// Unit is the electrical unit a part's value is expressed in.
type Unit string

const (
	UnitNone   Unit = "none"
	UnitOhm    Unit = "ohm"
	UnitFarad  Unit = "farad"
	UnitHenry  Unit = "henry"
	UnitVolt   Unit = "volt"
	UnitAmpere Unit = "ampere"
)

func (u Unit) IsValid() bool {
	switch u {
	case UnitNone, UnitOhm, UnitFarad, UnitHenry, UnitVolt, UnitAmpere:
		return true
	default:
		return false
	}
}

// Symbol returns the unit symbol as printed on schematics.
func (u Unit) Symbol() string {
	switch u {
	case UnitOhm:
		return "Ohm"
	case UnitFarad:
		return "F"
	case UnitHenry:
		return "H"
	case UnitVolt:
		return "V"
	case UnitAmpere:
		return "A"
	default:
		return ""
	}
}
