package mqtt

// outMsg stores a serialized MQTT message for replay after reconnection.
type outMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO that stores messages while disconnected.
// When full, the oldest message is overwritten.
// Not safe for concurrent use; caller must synchronize.
type outbox struct {
	msgs    []outMsg
	next    int // slot for the next push
	size    int
	dropped int // messages overwritten since the last drain
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{msgs: make([]outMsg, capacity)}
}

// push appends msg and reports whether an older message was dropped to make room.
func (o *outbox) push(msg outMsg) bool {
	full := o.size == len(o.msgs)
	o.msgs[o.next] = msg
	o.next = (o.next + 1) % len(o.msgs)
	if full {
		o.dropped++
		return true
	}
	o.size++
	return false
}

// drain returns the buffered messages oldest first, plus the number dropped,
// and empties the outbox.
func (o *outbox) drain() ([]outMsg, int) {
	if o.size == 0 {
		return nil, 0
	}

	out := make([]outMsg, 0, o.size)
	first := (o.next - o.size + len(o.msgs)) % len(o.msgs)
	for i := 0; i < o.size; i++ {
		out = append(out, o.msgs[(first+i)%len(o.msgs)])
	}
	dropped := o.dropped

	o.size, o.next, o.dropped = 0, 0, 0
	return out, dropped
}

func (o *outbox) len() int {
	return o.size
}
