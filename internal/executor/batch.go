package executor

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// BatchMode selects how a batch is executed.
type BatchMode int

// Batch modes.
const (
	Sequential BatchMode = iota
	Parallel
)

// String returns the mode name.
func (m BatchMode) String() string {
	if m == Parallel {
		return "parallel"
	}
	return "sequential"
}

// BatchItem is one command in a batch.
type BatchItem struct {
	DeviceID device.UniversalID `json:"device_id"`
	Command  device.Command     `json:"command"`
}

// BatchOptions configures ExecuteBatch.
type BatchOptions struct {
	Mode BatchMode

	// ContinueOnError keeps a sequential batch going after a failed item.
	// Parallel batches always run every item.
	ContinueOnError bool

	// MaxConcurrent overrides Config.MaxConcurrent for a parallel batch.
	MaxConcurrent int

	Options
}

var errSkipped = errors.New("earlier command in batch failed")

// ExecuteBatch runs items and returns one result per item in input order.
//
// Sequential batches stop at the first unsuccessful item unless
// ContinueOnError is set; the remaining items get a skipped result. Parallel
// batches dispatch every item concurrently, bounded by MaxConcurrent.
func (e *Executor) ExecuteBatch(ctx context.Context, items []BatchItem, opts BatchOptions) []device.CommandResult {
	results := make([]device.CommandResult, len(items))
	if len(items) == 0 {
		return results
	}

	if opts.Mode == Parallel {
		limit := opts.MaxConcurrent
		if limit < 1 {
			limit = e.cfg.MaxConcurrent
		}
		var g errgroup.Group
		g.SetLimit(limit)
		for i, item := range items {
			g.Go(func() error {
				results[i] = e.Execute(ctx, item.DeviceID, item.Command, opts.Options)
				return nil
			})
		}
		_ = g.Wait()
		return results
	}

	for i, item := range items {
		results[i] = e.Execute(ctx, item.DeviceID, item.Command, opts.Options)
		if results[i].Success || opts.ContinueOnError {
			continue
		}
		for j := i + 1; j < len(items); j++ {
			results[j] = e.skipped(items[j])
		}
		e.logger.Info("batch stopped on failure",
			"failed_index", i, "skipped", len(items)-i-1, "error", results[i].Err)
		break
	}
	return results
}

func (e *Executor) skipped(item BatchItem) device.CommandResult {
	return device.CommandResult{
		ID:         uuid.NewString(),
		DeviceID:   item.DeviceID,
		Command:    item.Command,
		ExecutedAt: e.now().UTC(),
		Err:        device.NewError(device.KindSkipped, "execute batch", item.DeviceID, errSkipped),
	}
}
