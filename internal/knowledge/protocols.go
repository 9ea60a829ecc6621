package knowledge

import "context"

// AssetRepository stores and retrieves assets.
//
// Use cases depend on this interface; in a pipeline body it is satisfied by a
// durable proxy, in unit tests by the in-memory implementation directly.
type AssetRepository interface {
	Save(ctx context.Context, asset Asset) error
	Get(ctx context.Context, id string) (Asset, error)
}

// ExtractionService derives knowledge from an asset.
type ExtractionService interface {
	Extract(ctx context.Context, asset Asset) (Extraction, error)
}

// CuratorNotifier delivers notifications to curators. Returns the number of
// curators reached.
type CuratorNotifier interface {
	Notify(ctx context.Context, note Notification) (int, error)
}
