package notification

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultBatchSize = 10

// BulkOptions controls batch partitioning for SendBulk.
type BulkOptions struct {
	BatchSize           int           // items sent concurrently per batch (default 10)
	DelayBetweenBatches time.Duration // pause inserted after each full batch
}

// Bulk partitions items into fixed-size batches, runs each batch's sends
// concurrently, waits for the whole batch, then sleeps the configured delay
// before the next one. The returned slice always has exactly len(items)
// results in input order; a panicking send is converted into a BATCH_ERROR
// result so one bad item can never abort its siblings or the batch loop.
func Bulk(ctx context.Context, items []Notification, opts BulkOptions, send func(context.Context, Notification) DeliveryResult) []DeliveryResult {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	results := make([]DeliveryResult, len(items))

	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						results[i] = Failure("", items[i], &DeliveryError{
							Code:    CodeBatchError,
							Message: fmt.Sprintf("unexpected send failure: %v", r),
						})
					}
				}()
				results[i] = send(gctx, items[i])
				return nil
			})
		}
		// Sends never return errors; Wait is a pure batch barrier here.
		_ = g.Wait()

		if opts.DelayBetweenBatches > 0 && end < len(items) {
			select {
			case <-ctx.Done():
				for i := end; i < len(items); i++ {
					results[i] = Failure("", items[i], &DeliveryError{
						Code:      CodeBatchError,
						Message:   "bulk send cancelled: " + ctx.Err().Error(),
						Retryable: true,
					})
				}
				return results
			case <-time.After(opts.DelayBetweenBatches):
			}
		}
	}

	return results
}
