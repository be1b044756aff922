package transfer

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nimbusdrive/nimbus-go/session"
	"github.com/nimbusdrive/nimbus-go/tool"
	"github.com/nimbusdrive/nimbus-go/types"
)

// Uploader is the slice of the session client the queue depends on.
type Uploader interface {
	Upload(ctx context.Context, src types.FileSource, width, height int) (*types.FileRecord, error)
}

// Notifier receives queue events, e.g. the websocket hub.
type Notifier interface {
	Broadcast(ev types.QueueEvent)
}

type entry struct {
	item   *types.QueueItem
	src    types.FileSource
	cancel context.CancelFunc
	record *types.FileRecord
}

// Queue manages independently progressing uploads. All accepted files start
// concurrently; there is no ordering guarantee between transfers. Item state is
// owned exclusively by the queue: every mutation goes through the guarded
// transition paths below, and callers only ever see snapshots.
type Queue struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string

	uploader Uploader
	notifier Notifier
	maxBytes int64
	logger   *log.Logger
	wg       sync.WaitGroup
}

// QueueConfig configures a Queue.
type QueueConfig struct {
	Uploader Uploader
	Notifier Notifier // optional
	// MaxUploadMB caps accepted file sizes. 0 falls back to 100.
	MaxUploadMB int64
	Logger      *log.Logger
}

func NewQueue(cfg QueueConfig) *Queue {
	maxMB := cfg.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = tool.DefaultLogger
	}
	return &Queue{
		entries:  make(map[string]*entry),
		uploader: cfg.Uploader,
		notifier: cfg.Notifier,
		maxBytes: maxMB << 20,
		logger:   logger,
	}
}

// Enqueue validates and admits files. Every file that fails the acceptance
// gate is reported once, by name, and never becomes a queue item. Accepted
// files begin their transfer immediately and concurrently.
func (q *Queue) Enqueue(ctx context.Context, sources []types.FileSource) ([]string, []types.Rejection) {
	var accepted []string
	var rejected []types.Rejection
	for _, src := range sources {
		if err := tool.ValidateFile(src, q.maxBytes); err != nil {
			q.logger.Infof("Rejected %s: %v", src.Name, err)
			rejected = append(rejected, types.Rejection{Name: src.Name, Reason: err.Error()})
			continue
		}
		accepted = append(accepted, q.add(ctx, src))
	}
	return accepted, rejected
}

func (q *Queue) add(ctx context.Context, src types.FileSource) string {
	id := tool.NewID()
	itemCtx, cancel := context.WithCancel(ctx)
	item := &types.QueueItem{
		ID:     id,
		Name:   src.Name,
		MIME:   src.MIME,
		Size:   src.Size,
		Status: types.StatusPending,
	}
	q.mu.Lock()
	q.entries[id] = &entry{item: item, src: src, cancel: cancel}
	q.order = append(q.order, id)
	q.mu.Unlock()

	q.wg.Add(1)
	go q.run(itemCtx, id, src)
	return id
}

// run drives one item through its lifecycle. The image probe must settle
// before the transfer starts: width/height ride along as upload metadata.
func (q *Queue) run(ctx context.Context, id string, src types.FileSource) {
	defer q.wg.Done()

	var width, height int
	if probe := ProbeImage(src); probe != nil {
		width, height = probe.Width, probe.Height
		q.setProbe(id, probe)
	}

	if !q.transition(id, types.StatusPending, types.StatusUploading) {
		return // removed before start
	}

	record, err := q.uploader.Upload(ctx, src, width, height)
	q.settle(id, record, err)
	q.maybeDrained()
}

func (q *Queue) setProbe(id string, probe *ProbeResult) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.entries[id]; ok {
		e.item.Width = probe.Width
		e.item.Height = probe.Height
		e.item.PreviewURI = probe.PreviewURI
	}
}

func (q *Queue) transition(id string, from, to types.UploadStatus) bool {
	q.mu.Lock()
	e, ok := q.entries[id]
	if !ok || e.item.Status != from {
		q.mu.Unlock()
		return false
	}
	e.item.Status = to
	snapshot := *e.item
	q.mu.Unlock()
	if to == types.StatusUploading {
		q.notify(types.EventUploadStarted, snapshot)
	}
	return true
}

// settle records the transfer outcome. Only an item still in uploading may
// move: if cancellation won the race, whatever the transport returned is
// discarded, so an item never flips to done after being marked cancelled.
func (q *Queue) settle(id string, record *types.FileRecord, err error) {
	q.mu.Lock()
	e, ok := q.entries[id]
	if !ok || e.item.Status != types.StatusUploading {
		q.mu.Unlock()
		return
	}
	var event string
	switch {
	case err == nil:
		e.item.Status = types.StatusDone
		e.record = record
		event = types.EventUploadDone
	case session.IsCancelled(err):
		e.item.Status = types.StatusCancelled
		event = types.EventUploadCancelled
	case session.IsSessionExpired(err):
		// Redirecting is a session-level concern; the item just reports it.
		e.item.Status = types.StatusError
		e.item.Error = "session expired, please sign in again"
		event = types.EventUploadError
	default:
		e.item.Status = types.StatusError
		e.item.Error = err.Error()
		event = types.EventUploadError
	}
	snapshot := *e.item
	q.mu.Unlock()

	if snapshot.Status == types.StatusError {
		q.logger.Warnf("Upload of %s failed: %s", snapshot.Name, snapshot.Error)
	} else {
		q.logger.Infof("Upload of %s settled as %s", snapshot.Name, snapshot.Status)
	}
	q.notify(event, snapshot)
}

// Cancel signals the item's transfer to stop. An uploading item settles as
// cancelled immediately, and cancel wins against a near-simultaneous server
// response. Cancelling an item that has not started yet drops it from the
// queue before its transfer launches.
func (q *Queue) Cancel(id string) {
	q.mu.Lock()
	e, ok := q.entries[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	switch e.item.Status {
	case types.StatusUploading:
		e.cancel()
		e.item.Status = types.StatusCancelled
		snapshot := *e.item
		q.mu.Unlock()
		q.notify(types.EventUploadCancelled, snapshot)
	case types.StatusPending:
		e.cancel()
		q.dropLocked(id)
		q.mu.Unlock()
	default:
		q.mu.Unlock()
	}
}

// Remove deletes an item. Terminal and not-yet-started items are removed
// directly; an uploading item is cancelled first.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok {
		return fmt.Errorf("no such queue item: %s", id)
	}
	if e.item.Status == types.StatusUploading {
		e.cancel()
		e.item.Status = types.StatusCancelled
	}
	q.dropLocked(id)
	return nil
}

// Clear removes every terminal item.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, e := range q.entries {
		if e.item.Status.Terminal() {
			q.dropLocked(id)
		}
	}
}

func (q *Queue) dropLocked(id string) {
	delete(q.entries, id)
	q.order = slices.DeleteFunc(q.order, func(s string) bool { return s == id })
}

// Item returns a snapshot of one queue item.
func (q *Queue) Item(id string) (types.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.entries[id]; ok {
		return *e.item, true
	}
	return types.QueueItem{}, false
}

// Items returns snapshots in enqueue order.
func (q *Queue) Items() []types.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := make([]types.QueueItem, 0, len(q.order))
	for _, id := range q.order {
		if e, ok := q.entries[id]; ok {
			items = append(items, *e.item)
		}
	}
	return items
}

// Record returns the server-side file record of a completed upload.
func (q *Queue) Record(id string) (*types.FileRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.entries[id]; ok && e.record != nil {
		record := *e.record
		return &record, true
	}
	return nil, false
}

// AllDone is true iff the queue is non-empty and every item is terminal.
func (q *Queue) AllDone() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return false
	}
	for _, e := range q.entries {
		if !e.item.Status.Terminal() {
			return false
		}
	}
	return true
}

// Wait blocks until every launched transfer goroutine has returned.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) maybeDrained() {
	if q.AllDone() {
		q.notify(types.EventQueueDrained, types.QueueItem{})
	}
}

func (q *Queue) notify(event string, item types.QueueItem) {
	if q.notifier == nil {
		return
	}
	q.notifier.Broadcast(types.QueueEvent{
		Type:   event,
		ItemID: item.ID,
		Name:   item.Name,
		Status: item.Status,
		Error:  item.Error,
		Time:   time.Now(),
	})
}
