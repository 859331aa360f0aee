package model

// Location is a geographic position. It is never used by the assignment logic.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Assignment holds the mutable assignment fields of a site. The zero value
// means unassigned: no staff, score 0, no rationale and visit order 0.
type Assignment struct {
	Staff      StaffID  `json:"staff"`
	Score      int      `json:"score"`
	Rationale  []string `json:"rationale,omitempty"`
	VisitOrder int      `json:"visit_order"`
}

// Site is a job location staff can be assigned to.
type Site struct {
	Name       string     `json:"name" yaml:"name"`
	Location   Location   `json:"location" yaml:"location"`
	Difficulty Level      `json:"difficulty" yaml:"difficulty"`
	Stress     Level      `json:"stress" yaml:"stress"`
	Assignment Assignment `json:"assignment" yaml:"-"`
}

// Assigned reports whether a staff member is assigned to the site.
func (s Site) Assigned() bool { return s.Assignment.Staff != Unassigned }

// Clone returns a copy of the site that shares no memory with s.
func (s Site) Clone() Site {
	c := s
	if s.Assignment.Rationale != nil {
		c.Assignment.Rationale = append([]string(nil), s.Assignment.Rationale...)
	}
	return c
}

// CloneSites deep copies a site list.
func CloneSites(sites []Site) []Site {
	if sites == nil {
		return nil
	}
	out := make([]Site, len(sites))
	for i, s := range sites {
		out[i] = s.Clone()
	}
	return out
}

// Office is the fixed origin every route starts from.
type Office struct {
	Name     string   `json:"name" yaml:"name"`
	Location Location `json:"location" yaml:"location"`
}
