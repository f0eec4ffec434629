// Package patent defines the record model shared by the crawl pipeline: document
// identifiers, the extracted field set, the append-only result table and the
// derived country tally.
package patent

// AbsenceMarker is written in place of a value the page did not provide.
const AbsenceMarker = "NA"

// Field names, as used in logs and metrics labels.
const (
	FieldApplicationDate = "application_date"
	FieldIndustryCodes   = "industry_codes"
	FieldApplicants      = "applicants"
	FieldAuthors         = "authors"
	FieldAuthorCountries = "author_countries"
)

// DocumentID is the registry document number used both as crawl key and row id.
type DocumentID int

// Fields holds everything extracted from a single registry page.
type Fields struct {
	ApplicationDate string
	IndustryCodes   []string
	Applicants      []string
	Authors         []string
	AuthorCountries []string
}

// Record is one row of the result table.
type Record struct {
	ID DocumentID
	Fields
}

// Missing returns the field set used when a page yields nothing at all,
// e.g. a document skipped after a fetch failure.
func Missing() Fields {
	return Fields{
		ApplicationDate: AbsenceMarker,
		IndustryCodes:   []string{},
		Applicants:      []string{AbsenceMarker},
		Authors:         []string{AbsenceMarker},
		AuthorCountries: []string{},
	}
}

// Misses lists the fields that hold only their absence value.
func (f Fields) Misses() []string {
	var out []string
	if f.ApplicationDate == AbsenceMarker || f.ApplicationDate == "" {
		out = append(out, FieldApplicationDate)
	}
	if len(f.IndustryCodes) == 0 {
		out = append(out, FieldIndustryCodes)
	}
	if len(f.Applicants) == 0 || IsAbsent(f.Applicants) {
		out = append(out, FieldApplicants)
	}
	if len(f.Authors) == 0 || IsAbsent(f.Authors) {
		out = append(out, FieldAuthors)
	}
	if len(f.AuthorCountries) == 0 {
		out = append(out, FieldAuthorCountries)
	}
	return out
}

// IsAbsent reports whether a list field carries only the absence marker.
func IsAbsent(values []string) bool {
	return len(values) == 1 && values[0] == AbsenceMarker
}

func (f Fields) clone() Fields {
	return Fields{
		ApplicationDate: f.ApplicationDate,
		IndustryCodes:   cloneStrings(f.IndustryCodes),
		Applicants:      cloneStrings(f.Applicants),
		Authors:         cloneStrings(f.Authors),
		AuthorCountries: cloneStrings(f.AuthorCountries),
	}
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
