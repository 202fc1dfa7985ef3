package chronoquest

import "sync"

// Connectivity reports whether the remote store is believed reachable.
type Connectivity interface {
	Online() bool
}

// Network is the default Connectivity. Going from offline to online fires
// every subscriber; that transition is the "online" drain trigger.
type Network struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func()
}

// NewNetwork creates a monitor in the given state.
func NewNetwork(online bool) *Network {
	return &Network{online: online, subs: make(map[int]func())}
}

// Online reports the current state.
func (n *Network) Online() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

// SetOnline updates the state. Subscribers run synchronously, outside the
// lock, only on a false to true transition.
func (n *Network) SetOnline(online bool) {
	n.mu.Lock()
	fire := online && !n.online
	n.online = online
	var subs []func()
	if fire {
		subs = make([]func(), 0, len(n.subs))
		for _, fn := range n.subs {
			subs = append(subs, fn)
		}
	}
	n.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Subscribe registers fn for online transitions.
func (n *Network) Subscribe(fn func()) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}
