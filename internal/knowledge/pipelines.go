package knowledge

import (
	"context"
	"fmt"

	"github.com/pyx-industries/julee/internal/engine"
	"github.com/pyx-industries/julee/internal/value"
)

// Pipeline names.
const (
	PipelineCapture = "knowledge.capture"
	PipelineIndex   = "knowledge.index"
	PipelineIngest  = "knowledge.ingest"
)

// CapturePipeline wires CaptureAsset over durable proxies.
// A nil orphan wiring captures orphans without consulting anyone.
func CapturePipeline(orphan OrphanWiring) engine.Pipeline {
	return engine.PipelineFunc{
		PipelineName: PipelineCapture,
		Body: func(ctx context.Context, exec engine.Executor, input value.Object) (value.Object, error) {
			var req CaptureAssetRequest
			if err := value.Unmarshal(input, &req); err != nil {
				return nil, fmt.Errorf("%s: decode input: %w", PipelineCapture, err)
			}

			uc := &CaptureAsset{
				Repo:      NewAssetRepositoryProxy(exec, engine.StepOptions{}),
				Extractor: NewExtractionServiceProxy(exec, engine.StepOptions{}),
			}
			if orphan != nil {
				uc.OrphanHandler = orphan(exec)
			}

			resp, err := uc.Execute(ctx, req)
			if err != nil {
				return nil, err
			}
			return value.Marshal(resp)
		},
	}
}

// IndexPipeline wires IndexAsset over durable proxies.
func IndexPipeline() engine.Pipeline {
	return engine.PipelineFunc{
		PipelineName: PipelineIndex,
		Body: func(ctx context.Context, exec engine.Executor, input value.Object) (value.Object, error) {
			var req IndexAssetRequest
			if err := value.Unmarshal(input, &req); err != nil {
				return nil, fmt.Errorf("%s: decode input: %w", PipelineIndex, err)
			}

			uc := &IndexAsset{
				Repo:      NewAssetRepositoryProxy(exec, engine.StepOptions{}),
				Extractor: NewExtractionServiceProxy(exec, engine.StepOptions{}),
			}
			resp, err := uc.Execute(ctx, req)
			if err != nil {
				return nil, err
			}
			return value.Marshal(resp)
		},
	}
}

// IngestPipeline captures an asset and then dispatches indexing as a nested
// child execution, so capture and index each leave their own lineage.
func IngestPipeline() engine.Pipeline {
	return engine.PipelineFunc{
		PipelineName: PipelineIngest,
		Body: func(ctx context.Context, exec engine.Executor, input value.Object) (value.Object, error) {
			captured, err := exec.ExecuteChild(ctx, PipelineCapture, input)
			if err != nil {
				return nil, err
			}

			var capture CaptureAssetResponse
			if err := value.Unmarshal(captured, &capture); err != nil {
				return nil, fmt.Errorf("%s: decode capture result: %w", PipelineIngest, err)
			}

			indexInput, err := value.Marshal(IndexAssetRequest{AssetID: capture.AssetID})
			if err != nil {
				return nil, fmt.Errorf("%s: encode index input: %w", PipelineIngest, err)
			}
			if _, err := exec.ExecuteChild(ctx, PipelineIndex, indexInput); err != nil {
				return nil, err
			}

			return captured, nil
		},
	}
}

// RegisterPipelines binds the context's pipelines to the engine.
func RegisterPipelines(e *engine.Engine, orphan OrphanWiring) {
	e.RegisterPipeline(CapturePipeline(orphan))
	e.RegisterPipeline(IndexPipeline())
	e.RegisterPipeline(IngestPipeline())
}
