package scanner

import (
	"strings"

	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/internal/catalog"
)

// Scan types accepted by SelectCategories.
const (
	ScanSpaPass = "spapass"
	ScanMassage = "massage"
)

// SelectCategories picks the categories for a run. spapass selects pass
// categories, massage selects staff categories (narrowed to massageType
// when it names one, all of them when it names none), anything else selects
// all with staff first.
func SelectCategories(cat catalog.Catalog, scanType, massageType string) []availability.ServiceCategory {
	scanType = strings.ToLower(strings.TrimSpace(scanType))
	massageType = strings.ToLower(strings.TrimSpace(massageType))

	var staff, pass []availability.ServiceCategory
	for _, c := range cat.List() {
		switch c.Kind {
		case availability.KindPass:
			pass = append(pass, c)
		default:
			staff = append(staff, c)
		}
	}

	switch scanType {
	case ScanSpaPass:
		return pass
	case ScanMassage:
		if massageType == "" {
			return staff
		}
		var narrowed []availability.ServiceCategory
		for _, c := range staff {
			if c.Key == massageType {
				narrowed = append(narrowed, c)
			}
		}
		if len(narrowed) == 0 {
			return staff
		}
		return narrowed
	default:
		return append(staff, pass...)
	}
}

// Labels returns the display labels of categories.
func Labels(categories []availability.ServiceCategory) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, c.Label)
	}
	return out
}
