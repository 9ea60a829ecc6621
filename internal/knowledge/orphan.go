package knowledge

import (
	"context"
	"log/slog"

	"github.com/pyx-industries/julee/internal/ack"
	"github.com/pyx-industries/julee/internal/engine"
	"github.com/pyx-industries/julee/internal/handler"
	"github.com/pyx-industries/julee/internal/usecase"
)

// LoggingOrphanHandler acknowledges orphan assets with a warning and a log
// line. It commits (wilco): the orphan is noted, never blocked.
type LoggingOrphanHandler struct {
	Logger *slog.Logger
}

func (h LoggingOrphanHandler) Handle(ctx context.Context, asset Asset) ack.Acknowledgement {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("orphan asset captured", "asset", asset.ID, "title", asset.Title)
	return ack.Wilco(ack.WithWarnings("asset " + asset.ID + " has no collection"))
}

// OrphanWiring builds the orphan handler for one execution. Wirings that
// dispatch use cases take the run's Executor so their side effects become
// durable steps of the capturing execution.
type OrphanWiring func(exec engine.Executor) handler.Handler[Asset]

// LoggingOrphanWiring wires the plain logging handler.
func LoggingOrphanWiring(logger *slog.Logger) OrphanWiring {
	return func(engine.Executor) handler.Handler[Asset] {
		return LoggingOrphanHandler{Logger: logger}
	}
}

// NotifyOrphanWiring routes orphan assets to curator notification through the
// dispatcher. The use case is built lazily inside Handle, and its notifier is
// the durable proxy bound to the capturing execution.
func NotifyOrphanWiring(logger *slog.Logger) OrphanWiring {
	return func(exec engine.Executor) handler.Handler[Asset] {
		factory := usecase.Factory[NotifyCuratorsRequest, NotifyCuratorsResponse](func() usecase.Interface[NotifyCuratorsRequest, NotifyCuratorsResponse] {
			return &NotifyCurators{Notifier: NewCuratorNotifierProxy(exec, engine.StepOptions{})}
		})
		d := handler.NewDispatcher(
			handler.NewRoute("notify-curators", factory, func(asset Asset) NotifyCuratorsRequest {
				return NotifyCuratorsRequest{
					AssetID: asset.ID,
					Message: "orphan asset captured: " + asset.Title,
				}
			}),
		)
		if logger != nil {
			d = d.WithLogger(logger)
		}
		return d
	}
}
