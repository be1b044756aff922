package transfer

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdrive/nimbus-go/session"
	"github.com/nimbusdrive/nimbus-go/types"
)

func source(name, mime string, size int64) types.FileSource {
	return types.FileSource{
		Name: name,
		MIME: mime,
		Size: size,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(make([]byte, 0))), nil
		},
	}
}

// fakeUploader scripts per-file outcomes. A file listed in blocking holds its
// transfer open until release is closed, which lets tests pin an item in the
// uploading state.
type fakeUploader struct {
	mu       sync.Mutex
	started  map[string]chan struct{}
	release  map[string]chan struct{}
	errs     map[string]error
	uploaded []string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{
		started: make(map[string]chan struct{}),
		release: make(map[string]chan struct{}),
		errs:    make(map[string]error),
	}
}

func (f *fakeUploader) block(name string) (started, release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	started = make(chan struct{})
	release = make(chan struct{})
	f.started[name] = started
	f.release[name] = release
	return started, release
}

func (f *fakeUploader) failWith(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[name] = err
}

func (f *fakeUploader) Upload(ctx context.Context, src types.FileSource, width, height int) (*types.FileRecord, error) {
	f.mu.Lock()
	started := f.started[src.Name]
	release := f.release[src.Name]
	err := f.errs[src.Name]
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.uploaded = append(f.uploaded, src.Name)
	f.mu.Unlock()
	return &types.FileRecord{FileID: "id-" + src.Name, FileName: src.Name, Width: width, Height: height}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []types.QueueEvent
}

func (n *recordingNotifier) Broadcast(ev types.QueueEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) typesSeen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Type
	}
	return out
}

func TestEnqueueRejectsByNameWithoutCreatingItems(t *testing.T) {
	uploader := newFakeUploader()
	queue := NewQueue(QueueConfig{Uploader: uploader, MaxUploadMB: 100})

	accepted, rejected := queue.Enqueue(context.Background(), []types.FileSource{
		source("photo.jpg", "image/jpeg", 2<<20),
		source("raw-dump.bin", "application/octet-stream", 1<<20),
		source("huge.mp4", "video/mp4", 150<<20),
	})
	queue.Wait()

	require.Len(t, accepted, 1)
	require.Len(t, rejected, 2)
	names := []string{rejected[0].Name, rejected[1].Name}
	assert.Contains(t, names, "raw-dump.bin")
	assert.Contains(t, names, "huge.mp4")

	items := queue.Items()
	require.Len(t, items, 1, "rejected files must never become queue items")
	assert.Equal(t, "photo.jpg", items[0].Name)
	assert.Equal(t, types.StatusDone, items[0].Status)
}

func TestItemsSettleIndependently(t *testing.T) {
	uploader := newFakeUploader()
	uploader.failWith("broken.png", io.ErrUnexpectedEOF)
	queue := NewQueue(QueueConfig{Uploader: uploader})

	accepted, rejected := queue.Enqueue(context.Background(), []types.FileSource{
		source("ok.pdf", "application/pdf", 10),
		source("broken.png", "image/png", 10),
	})
	require.Empty(t, rejected)
	require.Len(t, accepted, 2)
	queue.Wait()

	byName := map[string]types.QueueItem{}
	for _, item := range queue.Items() {
		byName[item.Name] = item
	}
	assert.Equal(t, types.StatusDone, byName["ok.pdf"].Status)
	assert.Equal(t, types.StatusError, byName["broken.png"].Status)
	assert.Equal(t, io.ErrUnexpectedEOF.Error(), byName["broken.png"].Error)
	assert.True(t, queue.AllDone())
}

// Cancel during an in-flight transfer wins even when the transport comes back
// with a success afterwards.
func TestCancelWinsAgainstLateSuccess(t *testing.T) {
	uploader := newFakeUploader()
	started, release := uploader.block("slow.mp4")
	queue := NewQueue(QueueConfig{Uploader: uploader})

	accepted, _ := queue.Enqueue(context.Background(), []types.FileSource{
		source("slow.mp4", "video/mp4", 1<<20),
	})
	require.Len(t, accepted, 1)
	id := accepted[0]

	<-started
	queue.Cancel(id)

	item, ok := queue.Item(id)
	require.True(t, ok)
	assert.Equal(t, types.StatusCancelled, item.Status, "cancel must settle the item immediately")

	// Let the transfer finish with a success; it must be discarded.
	close(release)
	queue.Wait()

	item, ok = queue.Item(id)
	require.True(t, ok)
	assert.Equal(t, types.StatusCancelled, item.Status, "a late success must never flip cancelled to done")
	_, haveRecord := queue.Record(id)
	assert.False(t, haveRecord)
}

func TestCancelledTransportErrorSettlesAsCancelled(t *testing.T) {
	uploader := newFakeUploader()
	uploader.failWith("x.png", &session.APIError{Kind: session.KindCancelled, Message: "upload cancelled"})
	queue := NewQueue(QueueConfig{Uploader: uploader})

	accepted, _ := queue.Enqueue(context.Background(), []types.FileSource{source("x.png", "image/png", 5)})
	queue.Wait()

	item, ok := queue.Item(accepted[0])
	require.True(t, ok)
	assert.Equal(t, types.StatusCancelled, item.Status)
	assert.Empty(t, item.Error)
}

func TestSessionExpiryMarksItemWithSignInMessage(t *testing.T) {
	uploader := newFakeUploader()
	uploader.failWith("doc.pdf", &session.APIError{Kind: session.KindSessionExpired, Status: 401, Message: "session expired, please sign in again"})
	queue := NewQueue(QueueConfig{Uploader: uploader})

	accepted, _ := queue.Enqueue(context.Background(), []types.FileSource{source("doc.pdf", "application/pdf", 5)})
	queue.Wait()

	item, ok := queue.Item(accepted[0])
	require.True(t, ok)
	assert.Equal(t, types.StatusError, item.Status)
	assert.Equal(t, "session expired, please sign in again", item.Error)
}

func TestAllDoneOnlyWhenEveryItemIsTerminal(t *testing.T) {
	uploader := newFakeUploader()
	uploader.failWith("b.png", io.ErrClosedPipe)
	startedC, releaseC := uploader.block("c.mp4")
	queue := NewQueue(QueueConfig{Uploader: uploader})

	assert.False(t, queue.AllDone(), "an empty queue is not done")

	accepted, _ := queue.Enqueue(context.Background(), []types.FileSource{
		source("a.pdf", "application/pdf", 1),
		source("b.png", "image/png", 1),
		source("c.mp4", "video/mp4", 1),
	})
	require.Len(t, accepted, 3)

	<-startedC
	assert.False(t, queue.AllDone(), "one transfer is still in flight")

	queue.Cancel(accepted[2])
	close(releaseC)
	queue.Wait()

	assert.True(t, queue.AllDone(), "done, error and cancelled are all terminal")
}

func TestRemoveUploadingCancelsFirst(t *testing.T) {
	uploader := newFakeUploader()
	started, release := uploader.block("v.mp4")
	defer close(release)
	queue := NewQueue(QueueConfig{Uploader: uploader})

	accepted, _ := queue.Enqueue(context.Background(), []types.FileSource{source("v.mp4", "video/mp4", 1)})
	<-started

	require.NoError(t, queue.Remove(accepted[0]))
	_, ok := queue.Item(accepted[0])
	assert.False(t, ok)

	assert.Error(t, queue.Remove("missing"))
}

func TestClearDropsOnlyTerminalItems(t *testing.T) {
	uploader := newFakeUploader()
	started, release := uploader.block("live.mp4")
	defer close(release)
	queue := NewQueue(QueueConfig{Uploader: uploader})

	accepted, _ := queue.Enqueue(context.Background(), []types.FileSource{
		source("done.pdf", "application/pdf", 1),
		source("live.mp4", "video/mp4", 1),
	})
	require.Len(t, accepted, 2)
	<-started

	// First item settles as done quickly; poll rather than sleeping blind.
	require.Eventually(t, func() bool {
		item, ok := queue.Item(accepted[0])
		return ok && item.Status == types.StatusDone
	}, time.Second, 5*time.Millisecond)

	queue.Clear()
	_, doneLeft := queue.Item(accepted[0])
	_, liveLeft := queue.Item(accepted[1])
	assert.False(t, doneLeft)
	assert.True(t, liveLeft, "Clear must not touch in-flight items")
}

func TestProbeDimensionsReachTheUploader(t *testing.T) {
	png := encodePNG(t, 12, 7)
	src := types.FileSource{
		Name: "tiny.png",
		MIME: "image/png",
		Size: int64(len(png)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(png)), nil
		},
	}
	uploader := newFakeUploader()
	queue := NewQueue(QueueConfig{Uploader: uploader})

	accepted, _ := queue.Enqueue(context.Background(), []types.FileSource{src})
	queue.Wait()

	item, ok := queue.Item(accepted[0])
	require.True(t, ok)
	assert.Equal(t, 12, item.Width)
	assert.Equal(t, 7, item.Height)
	assert.NotEmpty(t, item.PreviewURI)

	record, ok := queue.Record(accepted[0])
	require.True(t, ok)
	assert.Equal(t, 12, record.Width, "dimensions must ride along with the upload")
	assert.Equal(t, 7, record.Height)
}

func TestNotifierSeesLifecycleEvents(t *testing.T) {
	uploader := newFakeUploader()
	notifier := &recordingNotifier{}
	queue := NewQueue(QueueConfig{Uploader: uploader, Notifier: notifier})

	queue.Enqueue(context.Background(), []types.FileSource{source("n.pdf", "application/pdf", 1)})
	queue.Wait()

	seen := notifier.typesSeen()
	assert.Equal(t, []string{types.EventUploadStarted, types.EventUploadDone, types.EventQueueDrained}, seen)
}
