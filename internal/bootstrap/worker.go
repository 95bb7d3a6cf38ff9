package bootstrap

import (
	"context"

	"github.com/kestrelhq/nlsql/internal/flow"
	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/internal/taskbroker"
	"github.com/kestrelhq/nlsql/pkg/mlog"
)

// NewTaskHandler builds the taskbroker.Handler run by every worker: decode
// the payload, dispatch through runner, and absorb business-level flow
// errors at the task boundary (spec §7: "the request is transitioned to
// Error ... the task is not requeued automatically"). A handler error is
// returned (driving the broker's at-least-once redelivery) only when the
// task boundary itself failed before a flow had the chance to persist any
// outcome — a genuinely transient infrastructure failure, not a business
// one.
func NewTaskHandler(runner *flow.Runner, deps flow.Deps, logger mlog.Logger) taskbroker.Handler {
	return func(ctx context.Context, payload []byte) error {
		wr, err := flow.DecodeWorkerRequest(payload)
		if err != nil {
			return err
		}

		ctx = mlog.WithContext(ctx, logger)

		return runTask(ctx, runner, deps, wr, logger)
	}
}

func runTask(ctx context.Context, runner *flow.Runner, deps flow.Deps, wr flow.WorkerRequest, logger mlog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("worker task panicked: %v", r)

			if statusErr := deps.Store.UpdateStatus(ctx, wr.Request.RequestID, requeststore.StatusError, "Unhandled exception, check logs"); statusErr != nil {
				logger.Errorf("persisting Error status after panic failed: %v", statusErr)
			}

			err = nil
		}
	}()

	if _, runErr := runner.Run(ctx, deps, wr); runErr != nil {
		logger.Warnf("flow run finished with error (request already marked Error): %v", runErr)
	}

	return nil
}
