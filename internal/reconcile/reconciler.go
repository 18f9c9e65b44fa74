package reconcile

import (
	"log/slog"

	"momentify/internal/models"
	"momentify/internal/notify"
)

// Outcome describes what HandleNewMedia did with an event.
type Outcome int

const (
	// Deferred: no snapshot yet, the event was dropped.
	Deferred Outcome = iota
	// Suppressed: merged (if absent) without a notification.
	Suppressed
	// Announced: merged (if absent) and surfaced as a live update.
	Announced
	// Duplicate: already cached and not self-originated; nothing changed.
	Duplicate
	// Rejected: neither image nor video; not cached.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Suppressed:
		return "suppressed"
	case Announced:
		return "announced"
	case Duplicate:
		return "duplicate"
	case Rejected:
		return "rejected"
	default:
		return "deferred"
	}
}

// UploadActivity reports whether a local upload is in flight.
type UploadActivity interface {
	Active() bool
}

// Options wires a Reconciler.
type Options struct {
	Cache    *Cache
	Tracking *TrackingSet
	Notifier notify.Notifier
	Uploads  UploadActivity
	// SessionID identifies this client; events uploaded by it are silent.
	SessionID string
	Logger    *slog.Logger
}

// Reconciler merges arrival events into the cache and decides whether the
// viewer should be told about them.
type Reconciler struct {
	cache     *Cache
	tracking  *TrackingSet
	notifier  notify.Notifier
	uploads   UploadActivity
	sessionID string
	log       *slog.Logger
}

func New(opts Options) *Reconciler {
	r := &Reconciler{
		cache:     opts.Cache,
		tracking:  opts.Tracking,
		notifier:  opts.Notifier,
		uploads:   opts.Uploads,
		sessionID: opts.SessionID,
		log:       opts.Logger,
	}
	if r.cache == nil {
		r.cache = NewCache()
	}
	if r.tracking == nil {
		r.tracking = NewTrackingSet(nil, 0)
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	r.log = r.log.With("component", "reconcile")
	return r
}

func (r *Reconciler) Cache() *Cache { return r.cache }

func (r *Reconciler) Tracking() *TrackingSet { return r.tracking }

// SetUploads sets the upload activity source. It must be called before
// events are delivered.
func (r *Reconciler) SetUploads(u UploadActivity) { r.uploads = u }

// MarkSelfUpload records that this client just finalized media id.
func (r *Reconciler) MarkSelfUpload(id string) {
	r.tracking.Add(id)
}

// HandleNewMedia applies one arrival event.
func (r *Reconciler) HandleNewMedia(item models.MediaItem) Outcome {
	if !r.cache.Initialized() {
		r.log.Debug("no snapshot yet, deferring event", "media_id", item.ID)
		return Deferred
	}
	variant, err := models.Classify(item)
	if err != nil {
		r.log.Warn("ignoring unsupported media", "media_id", item.ID, "err", err)
		return Rejected
	}

	switch {
	case r.uploads != nil && r.uploads.Active():
		r.tracking.Add(item.ID)
		r.cache.MergeIfAbsent(item)
		r.log.Debug("upload in progress, suppressing notification", "media_id", item.ID)
		return Suppressed
	case r.tracking.Consume(item.ID):
		r.cache.MergeIfAbsent(item)
		r.log.Debug("self upload detected, suppressing notification", "media_id", item.ID)
		return Suppressed
	case r.sessionID != "" && item.UploadedBy == r.sessionID:
		r.cache.MergeIfAbsent(item)
		r.log.Debug("uploaded by this session, suppressing notification", "media_id", item.ID)
		return Suppressed
	}

	if !r.cache.MergeIfAbsent(item) {
		return Duplicate
	}
	if r.notifier != nil {
		r.notifier.LiveUpdate(LiveMessage(variant), item.URL)
	}
	return Announced
}

// LiveMessage is the notification text for media shared by someone else.
func LiveMessage(v models.Variant) string {
	if v.Kind() == models.KindVideo {
		return "Someone just shared a new video!"
	}
	return "Someone just shared a new photo!"
}
