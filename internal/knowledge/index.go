package knowledge

import (
	"context"
	"fmt"
)

// IndexAssetRequest names the asset to index.
type IndexAssetRequest struct {
	AssetID string `json:"asset_id"`
}

// IndexAssetResponse carries the freshly derived index entries.
type IndexAssetResponse struct {
	AssetID string   `json:"asset_id"`
	Topics  []string `json:"topics"`
	Summary string   `json:"summary"`
}

// IndexAsset re-derives knowledge for a stored asset.
type IndexAsset struct {
	Repo      AssetRepository
	Extractor ExtractionService
}

func (uc *IndexAsset) Name() string { return "knowledge.index-asset" }

func (uc *IndexAsset) Execute(ctx context.Context, req IndexAssetRequest) (IndexAssetResponse, error) {
	asset, err := uc.Repo.Get(ctx, req.AssetID)
	if err != nil {
		return IndexAssetResponse{}, fmt.Errorf("index asset %s: %w", req.AssetID, err)
	}
	extraction, err := uc.Extractor.Extract(ctx, asset)
	if err != nil {
		return IndexAssetResponse{}, fmt.Errorf("index asset %s: %w", req.AssetID, err)
	}
	return IndexAssetResponse{
		AssetID: asset.ID,
		Topics:  extraction.Topics,
		Summary: extraction.Summary,
	}, nil
}
