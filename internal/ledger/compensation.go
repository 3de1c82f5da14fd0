package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Aidin1998/stablecoin/pkg/errors"
	"github.com/Aidin1998/stablecoin/pkg/metrics"
)

const compensationTimeout = 10 * time.Second

type compensation struct {
	collaborator string
	action       string
	undo         func(ctx context.Context) error
}

// compensator undoes applied collaborator calls in reverse order
type compensator struct {
	owner  string
	logger *zap.Logger
	steps  []compensation
}

func (c *compensator) push(collaborator, action string, undo func(ctx context.Context) error) {
	c.steps = append(c.steps, compensation{collaborator: collaborator, action: action, undo: undo})
}

// run reverts every recorded step and joins any failure onto cause
func (c *compensator) run(ctx context.Context, cause error) error {
	if len(c.steps) == 0 {
		return cause
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	errs := []error{cause}
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.undo(ctx); err != nil {
			metrics.Compensations.WithLabelValues(step.collaborator, "failed").Inc()
			c.logger.Error("Compensation failed, manual reconciliation required",
				zap.String("owner", c.owner),
				zap.String("collaborator", step.collaborator),
				zap.String("action", step.action),
				zap.NamedError("cause", cause),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		metrics.Compensations.WithLabelValues(step.collaborator, "ok").Inc()
		c.logger.Warn("Compensated collaborator call",
			zap.String("owner", c.owner),
			zap.String("collaborator", step.collaborator),
			zap.String("action", step.action))
	}
	c.steps = nil
	return errors.Join(errs...)
}
