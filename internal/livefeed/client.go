package livefeed

import (
	"sync"

	"incidenbot/backend/internal/models"

	"github.com/google/uuid"
)

// Snapshot is the whole incident collection at one version, newest first.
// Snapshots are shared read-only between clients and must not be modified.
// Revision counts the snapshots built by this hub; it changes even when a
// resync refreshes the rows under the same Version.
type Snapshot struct {
	Version   int64             `json:"version"`
	Revision  uint64            `json:"-"`
	Incidents []models.Incident `json:"incidents"`
}

// Client is anything the hub can push snapshots to (a dashboard websocket,
// an in-process callback).
type Client interface {
	// GetID returns the unique identifier of the subscription.
	GetID() string
	// GetSendChannel returns the channel the hub pushes snapshots into.
	GetSendChannel() chan<- *Snapshot
	// Run starts the client's goroutines.
	Run()
	// Close is called by the hub exactly once, when the client is removed.
	Close()
}

// FuncClient delivers snapshots to a Go callback, one at a time.
type FuncClient struct {
	ID   string
	Send chan *Snapshot
	fn   func(Snapshot)
	done chan struct{}
	once sync.Once
}

func NewFuncClient(fn func(Snapshot)) *FuncClient {
	return &FuncClient{
		ID:   uuid.New().String(),
		Send: make(chan *Snapshot, 16),
		fn:   fn,
		done: make(chan struct{}),
	}
}

func (c *FuncClient) GetID() string                    { return c.ID }
func (c *FuncClient) GetSendChannel() chan<- *Snapshot { return c.Send }

// Run consumes snapshots until Close. Only the newest queued snapshot is
// delivered when several pile up.
func (c *FuncClient) Run() {
	go func() {
		defer close(c.done)
		for snap := range c.Send {
			for n := len(c.Send); n > 0; n-- {
				next, ok := <-c.Send
				if !ok {
					break
				}
				snap = next
			}
			c.fn(*snap)
		}
	}()
}

func (c *FuncClient) Close() {
	c.once.Do(func() { close(c.Send) })
}

// Done is closed once the callback goroutine exits.
func (c *FuncClient) Done() <-chan struct{} { return c.done }
