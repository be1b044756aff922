package recycle

import (
	"context"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/nimbusdrive/nimbus-go/tool"
	"github.com/nimbusdrive/nimbus-go/types"
)

// DefaultWindowDays is the retention window for soft-deleted files.
const DefaultWindowDays = 30

// DaysRemaining derives how many whole days a soft-deleted record has left.
// Floor semantics: 29 days 23h elapsed is 1 day left; exactly windowDays
// elapsed is 0, and 0 means eligible for purge now. Never negative.
func DaysRemaining(deletedAt, now time.Time, windowDays int) int {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	elapsedDays := int(math.Floor(now.Sub(deletedAt).Hours() / 24))
	remaining := windowDays - elapsedDays
	if remaining < 0 {
		return 0
	}
	return remaining
}

// BinClient is the slice of the session client the policy depends on.
// Purge must be idempotent: purging an already-purged record is success.
type BinClient interface {
	ListBin(ctx context.Context) ([]types.DeletedRecord, error)
	Restore(ctx context.Context, fileID string) error
	Purge(ctx context.Context, fileID string) error
}

// Policy computes purge eligibility and orchestrates the expiry sweep and the
// bulk recycle-bin operations.
type Policy struct {
	client     BinClient
	windowDays int
	logger     *log.Logger
	now        func() time.Time
}

// PolicyConfig configures a Policy. Now is overridable for tests and defaults
// to time.Now.
type PolicyConfig struct {
	Client     BinClient
	WindowDays int
	Logger     *log.Logger
	Now        func() time.Time
}

func NewPolicy(cfg PolicyConfig) *Policy {
	windowDays := cfg.WindowDays
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	logger := cfg.Logger
	if logger == nil {
		logger = tool.DefaultLogger
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Policy{client: cfg.Client, windowDays: windowDays, logger: logger, now: now}
}

// DaysLeft returns the derived days-remaining for one record.
func (p *Policy) DaysLeft(rec types.DeletedRecord) int {
	return DaysRemaining(rec.DeletedAt, p.now(), p.windowDays)
}

// Expired returns the records whose retention window has run out.
func (p *Policy) Expired(records []types.DeletedRecord) []types.DeletedRecord {
	var expired []types.DeletedRecord
	for _, rec := range records {
		if p.DaysLeft(rec) == 0 {
			expired = append(expired, rec)
		}
	}
	return expired
}

// Sweep purges every expired record, concurrently and without confirmation:
// the confirmation gate applies to user-initiated actions only. Each purge is
// independent; individual failures are logged and swallowed so one bad record
// never blocks the rest. Returns the ids that were attempted, which the caller
// removes from the visible set optimistically.
func (p *Policy) Sweep(ctx context.Context, records []types.DeletedRecord) []string {
	expired := p.Expired(records)
	if len(expired) == 0 {
		return nil
	}

	attempted := make([]string, 0, len(expired))
	var g errgroup.Group
	for _, rec := range expired {
		attempted = append(attempted, rec.FileID)
		g.Go(func() error {
			if err := p.client.Purge(ctx, rec.FileID); err != nil {
				p.logger.Warnf("Expiry purge of %s (%s) failed: %v", rec.FileName, rec.FileID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	p.logger.Infof("Expiry sweep attempted %d of %d recycle-bin records", len(attempted), len(records))
	return attempted
}

// Load fetches the recycle bin, runs the expiry sweep, and returns the records
// that remain visible after optimistic removal of the swept ones.
func (p *Policy) Load(ctx context.Context) ([]types.DeletedRecord, error) {
	records, err := p.client.ListBin(ctx)
	if err != nil {
		return nil, err
	}
	attempted := p.Sweep(ctx, records)
	if len(attempted) == 0 {
		return records, nil
	}
	swept := make(map[string]bool, len(attempted))
	for _, id := range attempted {
		swept[id] = true
	}
	visible := records[:0:0]
	for _, rec := range records {
		if !swept[rec.FileID] {
			visible = append(visible, rec)
		}
	}
	return visible, nil
}
