package knowledge

import (
	"context"

	"github.com/pyx-industries/julee/internal/engine"
	"github.com/pyx-industries/julee/internal/proxy"
)

// Activity names. Proxies issue steps under these names and the registered
// implementations answer them; both sides must agree on the wire shapes
// below.
const (
	ActivitySaveAsset      = "knowledge.asset.save"
	ActivityGetAsset       = "knowledge.asset.get"
	ActivityExtract        = "knowledge.extraction.extract"
	ActivityNotifyCurators = "knowledge.curators.notify"
)

type saveAssetArgs struct {
	Asset Asset `json:"asset"`
}

type saveAssetResult struct {
	Saved bool `json:"saved"`
}

type getAssetArgs struct {
	ID string `json:"id"`
}

type getAssetResult struct {
	Asset Asset `json:"asset"`
}

type extractArgs struct {
	Asset Asset `json:"asset"`
}

type extractResult struct {
	Extraction Extraction `json:"extraction"`
}

type notifyArgs struct {
	Note Notification `json:"note"`
}

type notifyResult struct {
	Delivered int `json:"delivered"`
}

// RegisterActivities binds the context's protocol implementations to the
// engine under the activity names the proxies dispatch to.
func RegisterActivities(e *engine.Engine, repo AssetRepository, svc ExtractionService, notifier CuratorNotifier) {
	e.RegisterActivity(ActivitySaveAsset, proxy.ActivityFunc(
		func(ctx context.Context, args saveAssetArgs) (saveAssetResult, error) {
			if err := repo.Save(ctx, args.Asset); err != nil {
				return saveAssetResult{}, err
			}
			return saveAssetResult{Saved: true}, nil
		}))

	e.RegisterActivity(ActivityGetAsset, proxy.ActivityFunc(
		func(ctx context.Context, args getAssetArgs) (getAssetResult, error) {
			asset, err := repo.Get(ctx, args.ID)
			if err != nil {
				return getAssetResult{}, err
			}
			return getAssetResult{Asset: asset}, nil
		}))

	e.RegisterActivity(ActivityExtract, proxy.ActivityFunc(
		func(ctx context.Context, args extractArgs) (extractResult, error) {
			extraction, err := svc.Extract(ctx, args.Asset)
			if err != nil {
				return extractResult{}, err
			}
			return extractResult{Extraction: extraction}, nil
		}))

	e.RegisterActivity(ActivityNotifyCurators, proxy.ActivityFunc(
		func(ctx context.Context, args notifyArgs) (notifyResult, error) {
			delivered, err := notifier.Notify(ctx, args.Note)
			if err != nil {
				return notifyResult{}, err
			}
			return notifyResult{Delivered: delivered}, nil
		}))
}
