package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/pyx-industries/julee/internal/handler"
)

// CaptureAssetRequest is the input to the capture use case.
type CaptureAssetRequest struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	CollectionID string `json:"collection_id"`
}

// CaptureAssetResponse reports the captured asset and its derived knowledge.
type CaptureAssetResponse struct {
	AssetID  string   `json:"asset_id"`
	Orphan   bool     `json:"orphan"`
	Topics   []string `json:"topics"`
	Summary  string   `json:"summary"`
	Warnings []string `json:"warnings"`
}

// CaptureAsset stores a new asset and extracts knowledge from it.
//
// An asset with no collection is an orphan. The orphan condition does not
// block capture; when an OrphanHandler is wired it is consulted, its warnings
// carry into the response, and a refusing acknowledgement fails the capture.
// With no handler the orphan is captured silently.
type CaptureAsset struct {
	Repo          AssetRepository
	Extractor     ExtractionService
	OrphanHandler handler.Handler[Asset] // nil when no orphan handling is wired
}

func (uc *CaptureAsset) Name() string { return "knowledge.capture-asset" }

func (uc *CaptureAsset) Execute(ctx context.Context, req CaptureAssetRequest) (CaptureAssetResponse, error) {
	id, err := AssetID(req.Title, req.Body)
	if err != nil {
		return CaptureAssetResponse{}, fmt.Errorf("capture asset: %w", err)
	}
	asset := Asset{
		ID:           id,
		Title:        req.Title,
		Body:         req.Body,
		CollectionID: req.CollectionID,
	}

	resp := CaptureAssetResponse{AssetID: id, Orphan: asset.Orphan()}

	if asset.Orphan() && uc.OrphanHandler != nil {
		acknowledgement := uc.OrphanHandler.Handle(ctx, asset)
		resp.Warnings = append(resp.Warnings, acknowledgement.Warnings()...)
		if acknowledgement.Rejected() {
			return CaptureAssetResponse{}, fmt.Errorf("capture asset %s: orphan handling refused: %s",
				id, strings.Join(acknowledgement.Errors(), "; "))
		}
	}

	if err := uc.Repo.Save(ctx, asset); err != nil {
		return CaptureAssetResponse{}, fmt.Errorf("capture asset %s: %w", id, err)
	}

	extraction, err := uc.Extractor.Extract(ctx, asset)
	if err != nil {
		return CaptureAssetResponse{}, fmt.Errorf("capture asset %s: %w", id, err)
	}
	resp.Topics = extraction.Topics
	resp.Summary = extraction.Summary

	return resp, nil
}
