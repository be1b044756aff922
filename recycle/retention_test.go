package recycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdrive/nimbus-go/types"
)

// fakeBin scripts the bin contents and records every purge/restore call.
type fakeBin struct {
	mu       sync.Mutex
	records  []types.DeletedRecord
	listErr  error
	purgeErr map[string]error
	purged   []string
	restored []string
}

func (f *fakeBin) ListBin(ctx context.Context) ([]types.DeletedRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records, nil
}

func (f *fakeBin) Restore(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = append(f.restored, fileID)
	return nil
}

func (f *fakeBin) Purge(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.purgeErr[fileID]; err != nil {
		return err
	}
	f.purged = append(f.purged, fileID)
	return nil
}

func deleted(id string, deletedAt time.Time) types.DeletedRecord {
	return types.DeletedRecord{FileID: id, FileName: id + ".bin", FileType: "other", DeletedAt: deletedAt}
}

func TestDaysRemainingBoundaries(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		deleted time.Time
		want    int
	}{
		{"just deleted", now, 30},
		{"one hour ago", now.Add(-time.Hour), 30},
		{"29 days 23 hours ago", now.Add(-(29*24 + 23) * time.Hour), 1},
		{"exactly 30 days ago", now.AddDate(0, 0, -30), 0},
		{"45 days ago", now.AddDate(0, 0, -45), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DaysRemaining(tc.deleted, now, 30))
		})
	}
}

func TestDaysRemainingDefaultsWindow(t *testing.T) {
	now := time.Now()
	assert.Equal(t, DefaultWindowDays, DaysRemaining(now, now, 0))
	assert.Equal(t, DefaultWindowDays, DaysRemaining(now, now, -5))
}

func TestExpiredSelectsOnlyZeroDayRecords(t *testing.T) {
	now := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	policy := NewPolicy(PolicyConfig{
		Client: &fakeBin{},
		Now:    func() time.Time { return now },
	})

	fresh := deleted("fresh", now.AddDate(0, 0, -3))
	edge := deleted("edge", now.AddDate(0, 0, -30))
	stale := deleted("stale", now.AddDate(0, 0, -60))

	expired := policy.Expired([]types.DeletedRecord{fresh, edge, stale})
	require.Len(t, expired, 2)
	assert.Equal(t, "edge", expired[0].FileID)
	assert.Equal(t, "stale", expired[1].FileID)
}

func TestSweepPurgesExpiredAndSwallowsFailures(t *testing.T) {
	now := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	bin := &fakeBin{
		purgeErr: map[string]error{"bad": errors.New("backend hiccup")},
	}
	policy := NewPolicy(PolicyConfig{
		Client: bin,
		Now:    func() time.Time { return now },
	})

	records := []types.DeletedRecord{
		deleted("fresh", now.AddDate(0, 0, -1)),
		deleted("bad", now.AddDate(0, 0, -31)),
		deleted("old", now.AddDate(0, 0, -40)),
	}

	attempted := policy.Sweep(context.Background(), records)
	assert.ElementsMatch(t, []string{"bad", "old"}, attempted, "a failing purge still counts as attempted")
	assert.Equal(t, []string{"old"}, bin.purged)
}

func TestSweepNoExpiredRecordsIsANoOp(t *testing.T) {
	now := time.Now()
	bin := &fakeBin{}
	policy := NewPolicy(PolicyConfig{Client: bin, Now: func() time.Time { return now }})

	attempted := policy.Sweep(context.Background(), []types.DeletedRecord{
		deleted("a", now.Add(-time.Hour)),
	})
	assert.Empty(t, attempted)
	assert.Empty(t, bin.purged)
}

func TestLoadFiltersSweptRecords(t *testing.T) {
	now := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	bin := &fakeBin{}
	bin.records = []types.DeletedRecord{
		deleted("keep", now.AddDate(0, 0, -5)),
		deleted("expired", now.AddDate(0, 0, -35)),
	}
	policy := NewPolicy(PolicyConfig{Client: bin, Now: func() time.Time { return now }})

	visible, err := policy.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "keep", visible[0].FileID)
	assert.Equal(t, []string{"expired"}, bin.purged)
}

func TestLoadPropagatesListError(t *testing.T) {
	bin := &fakeBin{listErr: errors.New("network down")}
	policy := NewPolicy(PolicyConfig{Client: bin})

	_, err := policy.Load(context.Background())
	assert.Error(t, err)
}
