// Package knowledge is the capture-and-curation bounded context built on the
// durable-execution core: assets are captured, knowledge is extracted from
// them, and curators are notified, with every side effect journaled as a
// retryable step.
package knowledge

import "github.com/pyx-industries/julee/internal/value"

// Asset is a captured piece of source material.
type Asset struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	CollectionID string `json:"collection_id"`
}

// Orphan reports whether the asset belongs to no collection.
func (a Asset) Orphan() bool {
	return a.CollectionID == ""
}

// AssetID derives the content-addressed identifier for an asset's material.
// Deterministic by construction, so pipeline bodies may call it freely.
func AssetID(title, body string) (string, error) {
	return value.Hash(value.DomainEntity, value.Object{
		"title": value.String(title),
		"body":  value.String(body),
	})
}

// Extraction is the knowledge derived from one asset.
type Extraction struct {
	AssetID string   `json:"asset_id"`
	Topics  []string `json:"topics"`
	Summary string   `json:"summary"`
}

// Notification is a curator-facing message about an asset.
type Notification struct {
	AssetID string `json:"asset_id"`
	Message string `json:"message"`
}
