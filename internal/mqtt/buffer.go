package mqtt

import "log"

// pending is a serialized message waiting for the broker.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// backlog holds messages published while the client is disconnected. When
// full the oldest entry is evicted. Callers synchronize.
type backlog struct {
	msgs    []pending
	limit   int
	dropped int
}

func newBacklog(limit int) *backlog {
	return &backlog{limit: limit}
}

func (b *backlog) add(m pending) {
	if b.limit <= 0 {
		b.dropped++
		return
	}
	if len(b.msgs) == b.limit {
		if b.dropped == 0 {
			log.Printf("mqtt: backlog full (%d messages), evicting oldest", b.limit)
		}
		copy(b.msgs, b.msgs[1:])
		b.msgs = b.msgs[:len(b.msgs)-1]
		b.dropped++
	}
	b.msgs = append(b.msgs, m)
}

// take empties the backlog, returning its messages oldest first, and the
// number evicted since the last take.
func (b *backlog) take() ([]pending, int) {
	msgs, dropped := b.msgs, b.dropped
	b.msgs = nil
	b.dropped = 0
	return msgs, dropped
}

func (b *backlog) len() int { return len(b.msgs) }
