package gallery

import (
	"math"
	"sync"
	"time"

	"momentify/internal/clock"
)

// Transition timings.
const (
	SlideDuration  = 300 * time.Millisecond
	SettleDuration = 50 * time.Millisecond
)

// Dismiss gesture tuning, in pixels.
const (
	DismissThreshold = 100
	FadeDistance     = 300
)

// Direction of the slide animation.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionLeft
	DirectionRight
)

func (d Direction) String() string {
	switch d {
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	default:
		return "none"
	}
}

// Phase of an index transition.
type Phase int

const (
	PhaseIdle Phase = iota
	// PhaseSliding: direction set, index not swapped yet.
	PhaseSliding
	// PhaseSettling: index swapped, direction about to clear.
	PhaseSettling
)

// Key is a keyboard key name.
type Key string

const (
	KeyArrowLeft  Key = "ArrowLeft"
	KeyArrowRight Key = "ArrowRight"
	KeyEscape     Key = "Escape"
)

// KeySource delivers key presses while subscribed. Subscribe returns the
// function that removes the subscription.
type KeySource interface {
	Subscribe(handler func(Key)) (unsubscribe func())
}

// Point is a touch position.
type Point struct {
	X, Y float64
}

// View is a snapshot of navigator state.
type View struct {
	Open      bool
	Index     int
	Direction Direction
	Phase     Phase
	Offset    Point
	Opacity   float64
}

// Navigator is the lightbox state machine: an index over count items with an
// animated transition and a drag-to-dismiss gesture. All methods are safe for
// concurrent use; timer callbacks take the same lock.
type Navigator struct {
	clock clock.Clock
	keys  KeySource

	mu       sync.Mutex
	count    int
	selected int
	target   int
	dir      Direction
	phase    Phase
	timer    clock.Timer
	gen      uint64
	origin   *Point
	offset   Point
	unsub    func()
	tornDown bool
	onChange func(View)
}

// NewNavigator creates a closed navigator. keys may be nil.
func NewNavigator(c clock.Clock, keys KeySource) *Navigator {
	if c == nil {
		c = clock.Real{}
	}
	return &Navigator{clock: c, keys: keys, selected: -1, target: -1}
}

// OnChange registers fn to run after each state change, outside the lock.
func (n *Navigator) OnChange(fn func(View)) {
	n.mu.Lock()
	n.onChange = fn
	n.mu.Unlock()
}

// SetCount updates the number of items. The selection is clamped when the
// list shrinks, and the viewer closes when it empties.
func (n *Navigator) SetCount(count int) {
	n.mu.Lock()
	n.count = count
	var unsub func()
	if n.selected >= 0 {
		switch {
		case count == 0:
			unsub = n.closeLocked()
		case n.selected >= count || n.target >= count:
			n.cancelLocked()
			if n.selected >= count {
				n.selected = count - 1
			}
		}
	}
	n.unlockAndNotify()
	if unsub != nil {
		unsub()
	}
}

// Open shows item index. Out of range indexes are ignored.
func (n *Navigator) Open(index int) bool {
	n.mu.Lock()
	if n.tornDown || index < 0 || index >= n.count {
		n.mu.Unlock()
		return false
	}
	n.cancelLocked()
	n.selected = index
	n.origin = nil
	n.offset = Point{}
	subscribe := n.unsub == nil && n.keys != nil
	n.unlockAndNotify()

	if subscribe {
		unsub := n.keys.Subscribe(n.handleKey)
		n.mu.Lock()
		if n.unsub == nil && n.selected >= 0 {
			n.unsub = unsub
			unsub = nil
		}
		n.mu.Unlock()
		if unsub != nil {
			unsub()
		}
	}
	return true
}

// Close hides the viewer and cancels any pending transition.
func (n *Navigator) Close() {
	n.mu.Lock()
	unsub := n.closeLocked()
	n.unlockAndNotify()
	if unsub != nil {
		unsub()
	}
}

// Teardown closes the viewer for good; later Open calls are ignored.
func (n *Navigator) Teardown() {
	n.mu.Lock()
	n.tornDown = true
	unsub := n.closeLocked()
	n.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Next moves forward with wraparound.
func (n *Navigator) Next() { n.navigate(1, DirectionLeft) }

// Previous moves backward with wraparound.
func (n *Navigator) Previous() { n.navigate(-1, DirectionRight) }

func (n *Navigator) navigate(step int, dir Direction) {
	n.mu.Lock()
	if n.selected < 0 || n.count < 2 {
		n.mu.Unlock()
		return
	}
	base := n.selected
	if n.phase == PhaseSliding {
		base = n.target
	}
	n.cancelLocked()
	n.target = (base + step + n.count) % n.count
	n.dir = dir
	n.phase = PhaseSliding
	gen := n.gen
	n.timer = n.clock.AfterFunc(SlideDuration, func() { n.swap(gen) })
	n.unlockAndNotify()
}

func (n *Navigator) swap(gen uint64) {
	n.mu.Lock()
	if gen != n.gen || n.selected < 0 || n.phase != PhaseSliding {
		n.mu.Unlock()
		return
	}
	n.selected = n.target
	n.target = -1
	n.phase = PhaseSettling
	n.timer = n.clock.AfterFunc(SettleDuration, func() { n.settle(gen) })
	n.unlockAndNotify()
}

func (n *Navigator) settle(gen uint64) {
	n.mu.Lock()
	if gen != n.gen || n.selected < 0 || n.phase != PhaseSettling {
		n.mu.Unlock()
		return
	}
	n.dir = DirectionNone
	n.phase = PhaseIdle
	n.timer = nil
	n.unlockAndNotify()
}

func (n *Navigator) handleKey(k Key) {
	switch k {
	case KeyArrowLeft:
		n.Previous()
	case KeyArrowRight:
		n.Next()
	case KeyEscape:
		n.Close()
	}
}

// TouchStart records the gesture origin.
func (n *Navigator) TouchStart(p Point) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.selected < 0 {
		return
	}
	n.origin = &p
}

// TouchMove records a downward dominant drag as the dismiss offset.
// Horizontal drags do not navigate.
func (n *Navigator) TouchMove(p Point) {
	n.mu.Lock()
	if n.origin == nil {
		n.mu.Unlock()
		return
	}
	dx := p.X - n.origin.X
	dy := p.Y - n.origin.Y
	if math.Abs(dy) > math.Abs(dx) && dy > 0 {
		n.offset = Point{Y: dy}
	}
	n.unlockAndNotify()
}

// TouchEnd closes the viewer when the drag passed the threshold, otherwise
// springs back.
func (n *Navigator) TouchEnd() {
	n.mu.Lock()
	if n.origin == nil {
		n.mu.Unlock()
		return
	}
	dismiss := n.offset.Y > DismissThreshold
	n.origin = nil
	n.offset = Point{}
	var unsub func()
	if dismiss {
		unsub = n.closeLocked()
	}
	n.unlockAndNotify()
	if unsub != nil {
		unsub()
	}
}

// View returns the current state.
func (n *Navigator) View() View {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.viewLocked()
}

// IsOpen reports whether an item is shown.
func (n *Navigator) IsOpen() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.selected >= 0
}

// KeysAttached reports whether the keyboard subscription is live.
func (n *Navigator) KeysAttached() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unsub != nil
}

// Opacity maps a dismiss offset to viewer opacity.
func Opacity(offset float64) float64 {
	o := 1 - offset/FadeDistance
	return math.Max(0, math.Min(1, o))
}

func (n *Navigator) viewLocked() View {
	return View{
		Open:      n.selected >= 0,
		Index:     n.selected,
		Direction: n.dir,
		Phase:     n.phase,
		Offset:    n.offset,
		Opacity:   Opacity(n.offset.Y),
	}
}

// closeLocked resets state and returns the key unsubscribe to run unlocked.
func (n *Navigator) closeLocked() func() {
	n.cancelLocked()
	n.selected = -1
	n.origin = nil
	n.offset = Point{}
	unsub := n.unsub
	n.unsub = nil
	return unsub
}

// cancelLocked drops the pending transition. Stale callbacks see a newer
// generation and return.
func (n *Navigator) cancelLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.gen++
	n.target = -1
	n.dir = DirectionNone
	n.phase = PhaseIdle
}

func (n *Navigator) unlockAndNotify() {
	v := n.viewLocked()
	fn := n.onChange
	n.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}
