package knowledge

import (
	"context"

	"github.com/pyx-industries/julee/internal/engine"
	"github.com/pyx-industries/julee/internal/proxy"
)

// AssetRepositoryProxy implements AssetRepository over durable steps. Inside
// a pipeline body a call on it is indistinguishable from a direct repository
// call, except that it is recorded, retried, and survives a crash.
type AssetRepositoryProxy struct {
	exec engine.Executor
	opts engine.StepOptions
}

// NewAssetRepositoryProxy binds a proxy to one execution's Executor.
func NewAssetRepositoryProxy(exec engine.Executor, opts engine.StepOptions) *AssetRepositoryProxy {
	return &AssetRepositoryProxy{exec: exec, opts: opts}
}

func (p *AssetRepositoryProxy) Save(ctx context.Context, asset Asset) error {
	_, err := proxy.Call[saveAssetResult](ctx, p.exec, ActivitySaveAsset, saveAssetArgs{Asset: asset}, p.opts)
	return err
}

func (p *AssetRepositoryProxy) Get(ctx context.Context, id string) (Asset, error) {
	res, err := proxy.Call[getAssetResult](ctx, p.exec, ActivityGetAsset, getAssetArgs{ID: id}, p.opts)
	if err != nil {
		return Asset{}, err
	}
	return res.Asset, nil
}

// ExtractionServiceProxy implements ExtractionService over durable steps.
type ExtractionServiceProxy struct {
	exec engine.Executor
	opts engine.StepOptions
}

// NewExtractionServiceProxy binds a proxy to one execution's Executor.
func NewExtractionServiceProxy(exec engine.Executor, opts engine.StepOptions) *ExtractionServiceProxy {
	return &ExtractionServiceProxy{exec: exec, opts: opts}
}

func (p *ExtractionServiceProxy) Extract(ctx context.Context, asset Asset) (Extraction, error) {
	res, err := proxy.Call[extractResult](ctx, p.exec, ActivityExtract, extractArgs{Asset: asset}, p.opts)
	if err != nil {
		return Extraction{}, err
	}
	return res.Extraction, nil
}

// CuratorNotifierProxy implements CuratorNotifier over durable steps.
type CuratorNotifierProxy struct {
	exec engine.Executor
	opts engine.StepOptions
}

// NewCuratorNotifierProxy binds a proxy to one execution's Executor.
func NewCuratorNotifierProxy(exec engine.Executor, opts engine.StepOptions) *CuratorNotifierProxy {
	return &CuratorNotifierProxy{exec: exec, opts: opts}
}

func (p *CuratorNotifierProxy) Notify(ctx context.Context, note Notification) (int, error) {
	res, err := proxy.Call[notifyResult](ctx, p.exec, ActivityNotifyCurators, notifyArgs{Note: note}, p.opts)
	if err != nil {
		return 0, err
	}
	return res.Delivered, nil
}
