package knowledge

import (
	"context"
	"fmt"
)

// NotifyCuratorsRequest describes the notification to send.
type NotifyCuratorsRequest struct {
	AssetID string `json:"asset_id"`
	Message string `json:"message"`
}

// NotifyCuratorsResponse reports delivery.
type NotifyCuratorsResponse struct {
	Delivered int `json:"delivered"`
}

// NotifyCurators informs curators about an asset.
type NotifyCurators struct {
	Notifier CuratorNotifier
}

func (uc *NotifyCurators) Name() string { return "knowledge.notify-curators" }

func (uc *NotifyCurators) Execute(ctx context.Context, req NotifyCuratorsRequest) (NotifyCuratorsResponse, error) {
	delivered, err := uc.Notifier.Notify(ctx, Notification{
		AssetID: req.AssetID,
		Message: req.Message,
	})
	if err != nil {
		return NotifyCuratorsResponse{}, fmt.Errorf("notify curators about %s: %w", req.AssetID, err)
	}
	return NotifyCuratorsResponse{Delivered: delivered}, nil
}
