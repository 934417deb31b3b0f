package models

import "time"

// Item is a reference-data snapshot of one warehouse item, cached locally so
// barcode lookups keep working without connectivity.
type Item struct {
	Code        string  `json:"code" yaml:"code"`
	Name        string  `json:"name" yaml:"name"`
	Unit        string  `json:"unit" yaml:"unit"`
	Location    string  `json:"location" yaml:"location"`
	ExpectedQty float64 `json:"expected_qty" yaml:"expected_qty"`
}

// CacheStats is a read-only view over the reference cache.
type CacheStats struct {
	ItemsCount int        `json:"items_count"`
	OldestAt   *time.Time `json:"oldest_at,omitempty"`
	NewestAt   *time.Time `json:"newest_at,omitempty"`
}
