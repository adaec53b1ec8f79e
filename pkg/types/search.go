// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the litscout pipeline:
// papers found by search providers, documents retrieved by the resolver,
// search filters, and per-stage configuration.
package types

import "strconv"

// MaxScanDepth is the hard ceiling on the number of papers one aggregation
// run may return.
const MaxScanDepth = 500

// DefaultScanDepth is used when the caller does not set a depth.
const DefaultScanDepth = 50

// SearchFilters narrows an aggregation run.
type SearchFilters struct {
	// MinYear and MaxYear form an inclusive publication-year range; 0 means
	// unbounded on that side.
	MinYear int `json:"min_year,omitempty" yaml:"min_year,omitempty"`
	MaxYear int `json:"max_year,omitempty" yaml:"max_year,omitempty"`

	// ScanDepth is the target corpus size.
	ScanDepth int `json:"scan_depth" yaml:"scan_depth"`
}

// Normalize returns a copy with ScanDepth clamped to [1, MaxScanDepth]
// (DefaultScanDepth when unset) and inverted year bounds swapped.
func (f SearchFilters) Normalize() SearchFilters {
	switch {
	case f.ScanDepth <= 0:
		f.ScanDepth = DefaultScanDepth
	case f.ScanDepth > MaxScanDepth:
		f.ScanDepth = MaxScanDepth
	}
	if f.MinYear > 0 && f.MaxYear > 0 && f.MinYear > f.MaxYear {
		f.MinYear, f.MaxYear = f.MaxYear, f.MinYear
	}
	return f
}

// YearRange renders the filter in the "2019-2023" form accepted by the
// Semantic Scholar API. It returns "" when neither bound is set.
func (f SearchFilters) YearRange() string {
	switch {
	case f.MinYear > 0 && f.MaxYear > 0:
		return strconv.Itoa(f.MinYear) + "-" + strconv.Itoa(f.MaxYear)
	case f.MinYear > 0:
		return strconv.Itoa(f.MinYear) + "-"
	case f.MaxYear > 0:
		return "-" + strconv.Itoa(f.MaxYear)
	default:
		return ""
	}
}

// InRange reports whether year satisfies the filter. Unknown years (0) pass.
func (f SearchFilters) InRange(year int) bool {
	if year == 0 {
		return true
	}
	if f.MinYear > 0 && year < f.MinYear {
		return false
	}
	if f.MaxYear > 0 && year > f.MaxYear {
		return false
	}
	return true
}
