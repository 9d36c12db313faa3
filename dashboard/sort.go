package dashboard

import (
	"fmt"
	"slices"
	"strings"
)

// SortFields are the comparison table columns that can be sorted on.
var SortFields = []string{"faculty", "energy", "cost", "area", "ike", "students", "specific_energy"}

// SortFacultyInfo returns a copy of rows ordered by field. Equal rows keep
// their relative order.
func SortFacultyInfo(rows []FacultyInfo, field string, desc bool) ([]FacultyInfo, error) {
	out := slices.Clone(rows)

	if field == "faculty" {
		slices.SortStableFunc(out, func(a, b FacultyInfo) int {
			c := strings.Compare(a.Faculty, b.Faculty)
			if desc {
				return -c
			}
			return c
		})
		return out, nil
	}

	key, ok := numericField(field)
	if !ok {
		return nil, fmt.Errorf("unknown sort field %q (want one of %s)", field, strings.Join(SortFields, ", "))
	}
	slices.SortStableFunc(out, func(a, b FacultyInfo) int {
		x, y := key(a), key(b)
		c := 0
		switch {
		case x < y:
			c = -1
		case x > y:
			c = 1
		}
		if desc {
			return -c
		}
		return c
	})
	return out, nil
}

func numericField(field string) (func(FacultyInfo) float64, bool) {
	switch field {
	case "energy":
		return func(f FacultyInfo) float64 { return f.Energy }, true
	case "cost":
		return func(f FacultyInfo) float64 { return f.Cost }, true
	case "area":
		return func(f FacultyInfo) float64 { return f.Area }, true
	case "ike":
		return func(f FacultyInfo) float64 { return f.IKE }, true
	case "students":
		return func(f FacultyInfo) float64 { return f.Students }, true
	case "specific_energy":
		return func(f FacultyInfo) float64 { return f.SpecificEnergy }, true
	}
	return nil, false
}

// TopByEnergy returns at most n faculties, highest energy first.
func TopByEnergy(values []FacultyUsage, n int) []FacultyUsage {
	out := slices.Clone(values)
	slices.SortStableFunc(out, func(a, b FacultyUsage) int {
		switch {
		case a.Energy > b.Energy:
			return -1
		case a.Energy < b.Energy:
			return 1
		}
		return 0
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
