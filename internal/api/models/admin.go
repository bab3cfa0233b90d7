package models

// CacheInvalidateResponse is returned after clearing the geocode cache.
type CacheInvalidateResponse struct {
	Removed       int64     `json:"removed"`
	InvalidatedBy string    `json:"invalidatedBy"`
	InvalidatedAt Timestamp `json:"invalidatedAt"`
}
