// Package lookup implements index structures that we use to avoid scanning
// every filter for every request.
package lookup

import "github.com/abpkit/contentfilter/rules"

// Table is a common interface for all network filter lookup tables.
type Table interface {
	// Add adds the filter to the lookup table.
	Add(f *rules.Filter)

	// Get returns the first matching filter or nil.
	Get(r *rules.Request) (f *rules.Filter)

	// GetAll returns every matching filter.
	GetAll(r *rules.Request) (result []*rules.Filter)

	// Len returns the number of filters in the table.
	Len() (n int)
}
