// Package livefeed keeps every staff dashboard in sync with the incident
// collection. Writes announce a new version on Redis; the hub reloads the
// full list and pushes it to all registered clients.
package livefeed

import (
	"context"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"incidenbot/backend/internal/models"
	"incidenbot/backend/internal/storage"
)

// ResyncEvery is how often the hub compares its version with the store's,
// catching up on change notifications it missed.
const ResyncEvery = 30 * time.Second

// Hub owns the registry of live clients. Clients is only touched by the Run
// goroutine.
type Hub struct {
	Clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	ChangesCh    chan int64

	Storage     storage.Storage
	ResyncEvery time.Duration

	latest   atomic.Pointer[Snapshot]
	revision uint64
	done     chan struct{}
}

func NewHub(s storage.Storage) *Hub {
	return &Hub{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		ChangesCh:    make(chan int64, 16),
		Storage:      s,
		ResyncEvery:  ResyncEvery,
		done:         make(chan struct{}),
	}
}

// Latest returns the most recent snapshot, or nil before the first load.
func (h *Hub) Latest() *Snapshot {
	return h.latest.Load()
}

// Register adds a client and starts it. It returns false once the hub stopped.
func (h *Hub) Register(c Client) bool {
	select {
	case h.RegisterCh <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client. Unknown clients are ignored.
func (h *Hub) Unregister(c Client) {
	select {
	case h.UnregisterCh <- c:
	case <-h.done:
	}
}

// Subscribe calls fn with every snapshot, starting with the current one.
// The returned function cancels the subscription.
func (h *Hub) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c := NewFuncClient(fn)
	if !h.Register(c) {
		return func() {}
	}
	var once sync.Once
	return func() {
		once.Do(func() { h.Unregister(c) })
	}
}

// Run loads the first snapshot and serves the registry until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for id, c := range h.Clients {
			delete(h.Clients, id)
			c.Close()
		}
	}()

	h.reload(ctx, -1)

	interval := h.ResyncEvery
	if interval <= 0 {
		interval = ResyncEvery
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.RegisterCh:
			h.Clients[c.GetID()] = c
			c.Run()
			if snap := h.Latest(); snap != nil {
				h.send(c, snap)
			}

		case c := <-h.UnregisterCh:
			h.remove(c)

		case version := <-h.ChangesCh:
			if snap := h.Latest(); snap != nil && version <= snap.Version {
				continue
			}
			h.reload(ctx, version)

		case <-ticker.C:
			h.resync(ctx)
		}
	}
}

// StartChangeListener forwards Redis change notifications into ChangesCh.
func (h *Hub) StartChangeListener(ctx context.Context) {
	pubsub := h.Storage.SubscribeChanges(ctx)
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				version, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					log.Printf("WARNING: Ignoring malformed change notification %q: %v", msg.Payload, err)
					continue
				}
				select {
				case h.ChangesCh <- version:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

// resync reloads when the stored version moved, and also when the rows
// changed under an unchanged version (a write whose notification was lost).
func (h *Hub) resync(ctx context.Context) {
	version, err := h.Storage.CurrentVersion(ctx)
	if err != nil {
		log.Printf("WARNING: Failed to read incidents version: %v", err)
		return
	}
	snap := h.Latest()
	if snap == nil || snap.Version != version {
		h.reload(ctx, version)
		return
	}

	incidents, err := h.Storage.ListIncidents(ctx)
	if err != nil {
		log.Printf("ERROR: Failed to load incidents snapshot: %v", err)
		return
	}
	if sameIncidents(snap.Incidents, incidents) {
		return
	}
	log.Printf("INFO: Incidents changed without a version bump, refreshing snapshot %d", version)
	h.store(version, incidents)
}

// reload fetches the full collection and fans it out. A negative version
// means "ask the store".
func (h *Hub) reload(ctx context.Context, version int64) {
	if version < 0 {
		v, err := h.Storage.CurrentVersion(ctx)
		if err != nil {
			log.Printf("WARNING: Failed to read incidents version: %v", err)
			v = 0
		}
		version = v
	}

	incidents, err := h.Storage.ListIncidents(ctx)
	if err != nil {
		log.Printf("ERROR: Failed to load incidents snapshot: %v", err)
		return
	}
	h.store(version, incidents)
}

func (h *Hub) store(version int64, incidents []models.Incident) {
	if incidents == nil {
		incidents = []models.Incident{}
	}
	h.revision++
	snap := &Snapshot{Version: version, Revision: h.revision, Incidents: incidents}
	h.latest.Store(snap)
	h.broadcast(snap)
}

// sameIncidents reports whether two lists hold the same rows in the same
// order, judged by id, status and last update.
func sameIncidents(a, b []models.Incident) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Status != b[i].Status || !a[i].UpdatedAt.Equal(b[i].UpdatedAt) {
			return false
		}
	}
	return true
}

func (h *Hub) broadcast(snap *Snapshot) {
	for _, c := range h.Clients {
		h.send(c, snap)
	}
}

// send drops a client whose buffer is full.
func (h *Hub) send(c Client, snap *Snapshot) {
	select {
	case c.GetSendChannel() <- snap:
	default:
		log.Printf("WARNING: Live client %s is too slow, dropping it", c.GetID())
		h.remove(c)
	}
}

func (h *Hub) remove(c Client) {
	if _, ok := h.Clients[c.GetID()]; !ok {
		return
	}
	delete(h.Clients, c.GetID())
	c.Close()
}
