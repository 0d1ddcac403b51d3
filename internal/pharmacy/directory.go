// Package pharmacy exposes the read-only pharmacy directory entry consumed
// by the order core. Directory browsing and search are served elsewhere.
package pharmacy

import "errors"

// ErrNotFound indicates the pharmacy id does not resolve to a known pharmacy.
var ErrNotFound = errors.New("pharmacy not found")

// Pharmacy is a directory entry with the coordinates used for delivery pricing.
type Pharmacy struct {
	ID       int64
	Name     string
	Lat      float64
	Lng      float64
	Approved bool
}
