package terminal

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/TermStream/internal/shared/id"
)

// Frame is one sequenced chunk of session output. Frames are immutable once
// published.
type Frame struct {
	SessionID id.SessionID
	Seq       uint64
	Data      []byte
	Replay    bool
	Time      time.Time
}

// Gap reports frames dropped for one slow subscriber. ResumeSeq is the
// sequence of the next frame that subscriber will see.
type Gap struct {
	SessionID id.SessionID
	Dropped   uint64
	ResumeSeq uint64
	Time      time.Time
}

// Delivery is one item on a subscriber's stream: exactly one of Frame, Gap,
// or Event is set. Gaps are synthesized per subscriber at read time and
// always precede the frame delivery resumes at.
type Delivery struct {
	Frame *Frame
	Gap   *Gap
	Event *Event
}

// Fanout delivers a session's ordered output to independently paced
// subscribers. Publishing is O(1) against full subscriber buffers: slow
// subscribers drop their own oldest frames and never stall the producer,
// other subscribers, or the PTY.
type Fanout struct {
	mu        sync.Mutex
	sessionID id.SessionID
	capacity  int
	seq       uint64
	subs      map[id.SubscriberID]*Subscription
	closed    bool
}

// NewFanout creates a fanout whose subscribers buffer up to capacity
// deliveries each.
func NewFanout(sessionID id.SessionID, capacity int) *Fanout {
	if capacity <= 0 {
		capacity = 1
	}
	return &Fanout{
		sessionID: sessionID,
		capacity:  capacity,
		subs:      make(map[id.SubscriberID]*Subscription),
	}
}

// Publish assigns the next sequence number to data and hands the frame to
// every subscriber. It returns the assigned sequence.
func (f *Fanout) Publish(data []byte, ts time.Time) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	frame := &Frame{
		SessionID: f.sessionID,
		Seq:       f.seq,
		Data:      data,
		Time:      ts,
	}
	f.seq++

	for _, sub := range f.subs {
		sub.push(Delivery{Frame: frame})
	}
	return frame.Seq
}

// Announce interleaves a lifecycle event into every subscriber's stream at
// the current position. Events share buffer slots with frames but are never
// counted in gap markers.
func (f *Fanout) Announce(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, sub := range f.subs {
		sub.push(Delivery{Event: &ev})
	}
}

// ResetEpoch restarts sequence numbering at zero. Callers announce a
// restarted event first so subscribers can tell epochs apart.
func (f *Fanout) ResetEpoch() {
	f.mu.Lock()
	f.seq = 0
	f.mu.Unlock()
}

// Seq returns the next sequence number to be assigned.
func (f *Fanout) Seq() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

// Subscribe registers a consumer. A non-empty replay is delivered first as
// a single replay frame carrying the sequence live delivery resumes at.
func (f *Fanout) Subscribe(replay []byte) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrSubscriptionClosed
	}

	sub := &Subscription{
		ID:        id.NewSubscriberID(),
		fanout:    f,
		capacity:  f.capacity,
		notify:    make(chan struct{}, 1),
		createdAt: time.Now(),
	}
	f.subs[sub.ID] = sub

	if len(replay) > 0 {
		sub.push(Delivery{Frame: &Frame{
			SessionID: f.sessionID,
			Seq:       f.seq,
			Data:      replay,
			Replay:    true,
			Time:      time.Now(),
		}})
	}

	return sub, nil
}

// Unsubscribe removes a consumer. Idempotent; never blocks the publisher
// beyond the table mutation.
func (f *Fanout) Unsubscribe(subID id.SubscriberID) {
	f.mu.Lock()
	sub, ok := f.subs[subID]
	if ok {
		delete(f.subs, subID)
	}
	f.mu.Unlock()

	if ok {
		sub.markClosed()
	}
}

// Subscribers returns the current consumer count.
func (f *Fanout) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close terminates all subscriptions after their buffered deliveries drain.
func (f *Fanout) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	subs := make([]*Subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		subs = append(subs, sub)
	}
	f.subs = make(map[id.SubscriberID]*Subscription)
	f.mu.Unlock()

	for _, sub := range subs {
		sub.markClosed()
	}
}

// Subscription is one consumer's bounded view of a session stream. All
// subscribers observe frames in identical order; they differ only in
// cadence and in the gaps their own slowness caused.
type Subscription struct {
	ID id.SubscriberID

	fanout   *Fanout
	capacity int

	mu           sync.Mutex
	buf          []Delivery
	dropped      uint64
	totalDropped uint64
	closed       bool

	notify    chan struct{}
	createdAt time.Time
}

// push appends a delivery, evicting the oldest when full. Called with the
// fanout lock held, so ordering across subscribers is identical.
func (s *Subscription) push(d Delivery) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	for len(s.buf) >= s.capacity {
		evicted := s.buf[0]
		s.buf = s.buf[1:]
		if evicted.Frame != nil && !evicted.Frame.Replay {
			s.dropped++
			s.totalDropped++
		}
	}
	s.buf = append(s.buf, d)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until the next delivery is available, the subscription is
// closed and drained (ErrSubscriptionClosed), or ctx is done. If frames
// were dropped since the last read, a single gap marker coalescing the loss
// is returned before the next frame.
func (s *Subscription) Next(ctx context.Context) (Delivery, error) {
	for {
		s.mu.Lock()
		if s.dropped > 0 && len(s.buf) > 0 {
			if next := firstFrame(s.buf); next != nil {
				gap := Delivery{Gap: &Gap{
					SessionID: s.fanout.sessionID,
					Dropped:   s.dropped,
					ResumeSeq: next.Seq,
					Time:      time.Now(),
				}}
				s.dropped = 0
				s.mu.Unlock()
				return gap, nil
			}
		}
		if len(s.buf) > 0 {
			d := s.buf[0]
			s.buf = s.buf[1:]
			s.mu.Unlock()
			return d, nil
		}
		if s.closed {
			s.mu.Unlock()
			return Delivery{}, ErrSubscriptionClosed
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Delivery{}, ctx.Err()
		case <-s.notify:
		}
	}
}

// Dropped returns the total frames lost to this subscriber's overflow.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalDropped
}

// Close detaches the subscription from its fanout. Idempotent.
func (s *Subscription) Close() {
	s.fanout.Unsubscribe(s.ID)
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func firstFrame(buf []Delivery) *Frame {
	for _, d := range buf {
		if d.Frame != nil {
			return d.Frame
		}
	}
	return nil
}
