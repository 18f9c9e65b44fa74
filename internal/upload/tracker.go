package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"momentify/internal/clock"
	"momentify/internal/models"
	"momentify/internal/notify"
)

// CompleteGrace is how long a completed record stays visible.
const CompleteGrace = 2 * time.Second

// Status is the upload record lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Record is the visible state of one file.
type Record struct {
	ID       string
	File     File
	Progress float64
	Status   Status
	Category Category
	Error    string
	Preview  *Preview
	Item     *models.MediaItem
}

// Uploader is the server side of an upload. *apiclient.Client satisfies it.
type Uploader interface {
	RequestUpload(ctx context.Context, slug string, in models.RequestUploadRequest) (*models.RequestUploadResponse, error)
	UploadToSignedURL(ctx context.Context, signedURL string, body io.Reader, size int64, mimeType string, onProgress func(float64)) error
	CompleteUpload(ctx context.Context, slug string, in models.CompleteUploadRequest) (*models.MediaItem, error)
}

// Inspector builds previews and reads media metadata. Previewer satisfies it.
type Inspector interface {
	Preview(ctx context.Context, f File) (*Preview, error)
	Dimensions(ctx context.Context, f File) Dimensions
}

// Options configures a Tracker.
type Options struct {
	Slug      string
	Uploader  Uploader
	Notifier  notify.Notifier
	Inspector Inspector
	Clock     clock.Clock
	MaxBytes  int64
	// Concurrency bounds simultaneous transfers per batch; 0 means no bound.
	Concurrency int
	// OnSelfUpload receives the id of each media item this tracker created,
	// before its record is marked complete.
	OnSelfUpload func(mediaID string)
	// OnInvalidate asks the gallery to refetch after a completed upload.
	OnInvalidate func()
	// OnChange observes record changes, outside the tracker lock.
	OnChange func([]Record)
	Logger   *slog.Logger
}

// Tracker runs uploads and keeps their records.
type Tracker struct {
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	order   []string
	records map[string]*Record
	timers  map[string]clock.Timer

	wg    sync.WaitGroup
	errMu sync.Mutex
	errs  []error
}

func NewTracker(opts Options) *Tracker {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Inspector == nil {
		opts.Inspector = Previewer{}
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		opts:    opts,
		log:     logger.With("component", "upload", "slug", opts.Slug),
		records: make(map[string]*Record),
		timers:  make(map[string]clock.Timer),
	}
}

// Add validates files and starts uploading the accepted ones. Rejected files
// produce one error notification each and never enter the queue. It returns
// the ids of the accepted records.
func (t *Tracker) Add(ctx context.Context, files ...File) []string {
	var ids, rejected []string
	t.mu.Lock()
	for _, f := range files {
		if err := Validate(f, t.opts.MaxBytes); err != nil {
			t.log.Warn("file rejected", "file", f.Name, "err", err)
			rejected = append(rejected, RejectionMessage(f, err, t.opts.MaxBytes))
			continue
		}
		id := uuid.NewString()
		t.records[id] = &Record{ID: id, File: f, Status: StatusPending}
		t.order = append(t.order, id)
		ids = append(ids, id)
	}
	t.unlockAndNotify()
	for _, msg := range rejected {
		t.notifyError(msg)
	}
	if len(ids) == 0 {
		return nil
	}

	g := new(errgroup.Group)
	if t.opts.Concurrency > 0 {
		g.SetLimit(t.opts.Concurrency)
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for _, id := range ids {
			id := id
			g.Go(func() error { return t.run(ctx, id) })
		}
		if err := g.Wait(); err != nil {
			t.errMu.Lock()
			t.errs = append(t.errs, err)
			t.errMu.Unlock()
		}
	}()
	return ids
}

// Wait blocks until every started upload finished and returns the first
// failure of each batch.
func (t *Tracker) Wait() error {
	t.wg.Wait()
	t.errMu.Lock()
	defer t.errMu.Unlock()
	err := errors.Join(t.errs...)
	t.errs = nil
	return err
}

func (t *Tracker) run(ctx context.Context, id string) error {
	rec, ok := t.Record(id)
	if !ok {
		return nil
	}
	f := rec.File

	if preview, err := t.opts.Inspector.Preview(ctx, f); err != nil {
		t.log.Debug("preview unavailable", "file", f.Name, "err", err)
	} else if preview != nil {
		t.update(id, func(r *Record) { r.Preview = preview })
	}

	t.update(id, func(r *Record) { r.Status = StatusUploading })
	item, err := t.transfer(ctx, id, f)
	if err != nil {
		t.fail(id, err)
		return fmt.Errorf("%s: %w", f.Name, err)
	}

	if t.opts.OnSelfUpload != nil {
		t.opts.OnSelfUpload(item.ID)
	}
	t.update(id, func(r *Record) {
		r.Status = StatusComplete
		r.Progress = 100
		r.Item = item
	})
	t.log.Info("upload complete", "file", f.Name, "media_id", item.ID)
	if t.opts.Notifier != nil {
		t.opts.Notifier.Success(fmt.Sprintf("%s uploaded successfully!", f.Name))
	}
	if t.opts.OnInvalidate != nil {
		t.opts.OnInvalidate()
	}

	t.mu.Lock()
	if _, ok := t.records[id]; ok {
		t.timers[id] = t.opts.Clock.AfterFunc(CompleteGrace, func() { t.drop(id) })
	}
	t.mu.Unlock()
	return nil
}

func (t *Tracker) transfer(ctx context.Context, id string, f File) (*models.MediaItem, error) {
	dims := t.opts.Inspector.Dimensions(ctx, f)

	slot, err := t.opts.Uploader.RequestUpload(ctx, t.opts.Slug, models.RequestUploadRequest{
		Filename: f.Name,
		MimeType: f.MimeType,
		Size:     f.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("request upload: %w", err)
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer file.Close()

	err = t.opts.Uploader.UploadToSignedURL(ctx, slot.SignedURL, file, f.Size, f.MimeType, func(p float64) {
		t.update(id, func(r *Record) {
			if r.Status == StatusUploading && p > r.Progress {
				r.Progress = min(p, 100)
			}
		})
	})
	if err != nil {
		return nil, err
	}

	t.update(id, func(r *Record) {
		r.Status = StatusProcessing
		r.Progress = 100
	})
	item, err := t.opts.Uploader.CompleteUpload(ctx, t.opts.Slug, models.CompleteUploadRequest{
		Path:     slot.Path,
		Filename: f.Name,
		MimeType: f.MimeType,
		Size:     f.Size,
		Width:    dims.Width,
		Height:   dims.Height,
		Duration: dims.Duration,
	})
	if err != nil {
		return nil, fmt.Errorf("complete upload: %w", err)
	}
	return item, nil
}

func (t *Tracker) fail(id string, err error) {
	cat, msg := Classify(err)
	var name string
	t.update(id, func(r *Record) {
		r.Status = StatusError
		r.Category = cat
		r.Error = msg
		name = r.File.Name
	})
	t.log.Error("upload failed", "file", name, "category", cat, "err", err)
	t.notifyError(fmt.Sprintf("Failed to upload %s: %s", name, msg))
}

func (t *Tracker) notifyError(msg string) {
	if t.opts.Notifier != nil {
		t.opts.Notifier.Error(msg)
	}
}

func (t *Tracker) drop(id string) {
	t.mu.Lock()
	delete(t.timers, id)
	t.removeLocked(id)
	t.unlockAndNotify()
}

// Dismiss drops an error record. Records in any other state are kept.
func (t *Tracker) Dismiss(id string) bool {
	t.mu.Lock()
	rec, ok := t.records[id]
	if !ok || rec.Status != StatusError {
		t.mu.Unlock()
		return false
	}
	t.removeLocked(id)
	t.unlockAndNotify()
	return true
}

// Active reports whether any upload is pending, uploading or processing.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.records {
		switch r.Status {
		case StatusPending, StatusUploading, StatusProcessing:
			return true
		}
	}
	return false
}

// Record returns a copy of record id.
func (t *Tracker) Record(id string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Records returns the visible records in selection order.
func (t *Tracker) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recordsLocked()
}

// Close stops pending grace timers. Running uploads are bounded by the
// context passed to Add.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

func (t *Tracker) update(id string, fn func(*Record)) {
	t.mu.Lock()
	r, ok := t.records[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	fn(r)
	t.unlockAndNotify()
}

func (t *Tracker) removeLocked(id string) {
	delete(t.records, id)
	for i, other := range t.order {
		if other == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *Tracker) recordsLocked() []Record {
	out := make([]Record, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.records[id])
	}
	return out
}

func (t *Tracker) unlockAndNotify() {
	var snap []Record
	if t.opts.OnChange != nil {
		snap = t.recordsLocked()
	}
	t.mu.Unlock()
	if t.opts.OnChange != nil {
		t.opts.OnChange(snap)
	}
}
