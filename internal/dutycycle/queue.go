package dutycycle

import (
	"context"
	"sync/atomic"
)

// QueueCapacity is the depth of the application message queue.
const QueueCapacity = 5

// MessageID identifies an application message.
type MessageID int

const (
	// Quit ends the extraction session.
	Quit MessageID = iota
	// DeviceConnected reports a removable drive at MountPath.
	DeviceConnected
	// DeviceDisconnected reports the drive at MountPath went away.
	DeviceDisconnected
)

func (id MessageID) String() string {
	switch id {
	case Quit:
		return "quit"
	case DeviceConnected:
		return "device-connected"
	case DeviceDisconnected:
		return "device-disconnected"
	}
	return "unknown"
}

// Message is one entry in the queue.
type Message struct {
	ID        MessageID
	MountPath string
}

// Queue is a bounded FIFO shared by the quit button handler and the drive
// watcher. Messages from one producer keep their order.
type Queue struct {
	ch      chan Message
	dropped atomic.Uint64
}

// NewQueue returns an empty queue with QueueCapacity slots.
func NewQueue() *Queue {
	return &Queue{ch: make(chan Message, QueueCapacity)}
}

// TrySend enqueues m without blocking. It is the only method safe to call
// from a GPIO edge handler. A full queue drops m and counts it.
func (q *Queue) TrySend(m Message) bool {
	select {
	case q.ch <- m:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Send enqueues m, blocking until there is room or ctx is done.
func (q *Queue) Send(ctx context.Context, m Message) error {
	select {
	case q.ch <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv returns the receive side of the queue.
func (q *Queue) Recv() <-chan Message { return q.ch }

// Dropped is the number of messages TrySend discarded.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
