package gallery

import "sync"

// Keys is an in-process KeySource. Press fans a key out to subscribers.
type Keys struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func(Key)
}

func NewKeys() *Keys {
	return &Keys{handlers: make(map[int]func(Key))}
}

func (k *Keys) Subscribe(handler func(Key)) func() {
	k.mu.Lock()
	defer k.mu.Unlock()
	id := k.next
	k.next++
	k.handlers[id] = handler
	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Lock()
			delete(k.handlers, id)
			k.mu.Unlock()
		})
	}
}

// Press delivers key to every current subscriber. Handlers may unsubscribe.
func (k *Keys) Press(key Key) {
	k.mu.Lock()
	hs := make([]func(Key), 0, len(k.handlers))
	for _, h := range k.handlers {
		hs = append(hs, h)
	}
	k.mu.Unlock()
	for _, h := range hs {
		h(key)
	}
}

// Subscribers returns the number of live subscriptions.
func (k *Keys) Subscribers() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.handlers)
}
