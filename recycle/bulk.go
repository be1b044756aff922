package recycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nimbusdrive/nimbus-go/types"
)

// ErrPartialFailure marks a bulk operation where at least one record failed.
var ErrPartialFailure = errors.New("some recycle-bin operations failed")

// BulkFailure is one record a bulk operation could not process.
type BulkFailure struct {
	FileID string
	Reason string
}

// BulkResult reports per-record outcomes of a bulk operation. Callers keep the
// failed records in their local set for retry, so the UI never claims a state
// the server disagrees with.
type BulkResult struct {
	Succeeded []string
	Failed    []BulkFailure
}

// RestoreAll restores every record, one call per record, concurrently. All
// calls run to settlement: a failing record never aborts the others. When any
// record fails the error wraps ErrPartialFailure and the result says which.
func (p *Policy) RestoreAll(ctx context.Context, records []types.DeletedRecord) (BulkResult, error) {
	result := p.runBulk(ctx, records, p.client.Restore)
	return result, p.bulkErr("restore", len(records), result)
}

// EmptyBin permanently deletes every record with the same settlement semantics
// as RestoreAll. Purge idempotency means repeating a partially failed empty is
// always safe.
func (p *Policy) EmptyBin(ctx context.Context, records []types.DeletedRecord) (BulkResult, error) {
	result := p.runBulk(ctx, records, p.client.Purge)
	return result, p.bulkErr("purge", len(records), result)
}

func (p *Policy) runBulk(ctx context.Context, records []types.DeletedRecord, op func(context.Context, string) error) BulkResult {
	var (
		mu     sync.Mutex
		result BulkResult
		wg     sync.WaitGroup
	)
	for _, rec := range records {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := op(ctx, rec.FileID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, BulkFailure{FileID: rec.FileID, Reason: err.Error()})
				return
			}
			result.Succeeded = append(result.Succeeded, rec.FileID)
		}()
	}
	wg.Wait()
	return result
}

func (p *Policy) bulkErr(verb string, total int, result BulkResult) error {
	if len(result.Failed) == 0 {
		return nil
	}
	p.logger.Warnf("Bulk %s: %d of %d records failed", verb, len(result.Failed), total)
	return fmt.Errorf("%w: failed to %s %d of %d records", ErrPartialFailure, verb, len(result.Failed), total)
}
