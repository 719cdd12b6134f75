package normalize

// Canonical status values derived from boolean flags.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusApproved = "approved"
	StatusPending  = "pending"
	StatusDeleted  = "deleted"
)

// StatusRule resolves "status" from explicit status strings, then from flags.
//
//	status / extra sources non-empty -> lower-cased value
//	isDeleted == true                -> "deleted"
//	active true / false              -> "active" / "inactive"
//	isAdminApproved true / false     -> "approved" / "pending"
//	none of the above                -> ""
func StatusRule(sources ...string) FieldRule {
	if len(sources) == 0 {
		sources = []string{"status"}
	}
	return FieldRule{
		Name:      "status",
		Sources:   sources,
		Transform: Lower,
		Derive:    StatusFromFlags,
		Empty:     "",
	}
}

// StatusFromFlags applies the boolean part of the status truth table.
func StatusFromFlags(raw map[string]any) (any, bool) {
	if deleted, ok := boolValue(raw["isDeleted"]); ok && deleted {
		return StatusDeleted, true
	}
	if active, ok := boolValue(raw["active"]); ok {
		if active {
			return StatusActive, true
		}
		return StatusInactive, true
	}
	if approved, ok := boolValue(raw["isAdminApproved"]); ok {
		if approved {
			return StatusApproved, true
		}
		return StatusPending, true
	}
	return nil, false
}
