package services

import (
	"sync"

	"github.com/go-authgate/meshgate/internal/models"
)

// DeviceChange announces that a device row changed.
type DeviceChange struct {
	DeviceID string
	OwnerID  string
	Status   models.DeviceStatus
}

// DeviceNotifier fans device changes out to per-owner subscribers. Each
// subscriber has a single-slot buffer: a change arriving while one is still
// unread is dropped, since readers only need to know "something changed".
type DeviceNotifier struct {
	mu   sync.Mutex
	subs map[string]map[chan DeviceChange]struct{}
}

func NewDeviceNotifier() *DeviceNotifier {
	return &DeviceNotifier{subs: make(map[string]map[chan DeviceChange]struct{})}
}

// Subscribe registers for changes to ownerID's devices. The returned cancel
// func must be called to release the subscription.
func (n *DeviceNotifier) Subscribe(ownerID string) (<-chan DeviceChange, func()) {
	ch := make(chan DeviceChange, 1)

	n.mu.Lock()
	set, ok := n.subs[ownerID]
	if !ok {
		set = make(map[chan DeviceChange]struct{})
		n.subs[ownerID] = set
	}
	set[ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(set, ch)
			if len(set) == 0 {
				delete(n.subs, ownerID)
			}
		})
	}
}

// Publish never blocks. A nil notifier is a no-op.
func (n *DeviceNotifier) Publish(change DeviceChange) {
	if n == nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[change.OwnerID] {
		select {
		case ch <- change:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions for ownerID.
func (n *DeviceNotifier) Subscribers(ownerID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[ownerID])
}
