package model

// StaffID identifies a staff member. It is resolved once when the roster is
// loaded and used as the only reference to staff afterwards.
type StaffID string

// Unassigned is the StaffID of a site nobody has been assigned to.
const Unassigned StaffID = ""

// Staff is immutable reference data describing a field-service worker.
type Staff struct {
	ID            StaffID    `json:"id" yaml:"id"`
	Name          string     `json:"name" yaml:"name"`
	Skill         SkillLevel `json:"skill" yaml:"skill"`
	Interpersonal Level      `json:"interpersonal" yaml:"interpersonal"`
	// Color is only used by display layers.
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// StaffIndex resolves staff by identifier.
type StaffIndex map[StaffID]Staff

// IndexStaff builds a StaffIndex. Later duplicates overwrite earlier ones;
// rosters are validated for uniqueness before reaching this point.
func IndexStaff(staff []Staff) StaffIndex {
	idx := make(StaffIndex, len(staff))
	for _, s := range staff {
		idx[s.ID] = s
	}
	return idx
}

// Lookup returns the staff member with the given ID.
func (idx StaffIndex) Lookup(id StaffID) (Staff, bool) {
	s, ok := idx[id]
	return s, ok
}
