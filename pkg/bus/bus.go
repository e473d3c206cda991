package bus

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/simsomlab/simsom/pkg/log"
	"github.com/simsomlab/simsom/pkg/metrics"
	"github.com/simsomlab/simsom/pkg/types"
)

// Stop is the control payload that terminates the run. It always
// travels under the analyzer sender role, regardless of which
// participant escalated.
const Stop = "STOP"

// ErrStalled is returned by a participant that saw its probe window
// elapse with no traffic and escalated to a global stop.
var ErrStalled = errors.New("pipeline quiesced")

// Rank identifies a participant's mailbox on the bus.
type Rank int

// Envelope is the unit of exchange: a payload tagged with the sender's
// role so receivers can dispatch without inspecting the body first.
type Envelope struct {
	From types.Role
	Body interface{}
}

// IsStop reports whether the envelope carries the termination signal.
func (e Envelope) IsStop() bool {
	s, ok := e.Body.(string)
	return ok && s == Stop
}

// Config sizes the bus.
type Config struct {
	// Participants is the number of mailboxes (one per rank).
	Participants int

	// BufferSize is the mailbox depth before sends go asynchronous.
	BufferSize int

	// HighWater bounds outstanding asynchronous sends per endpoint;
	// a sender exceeding it waits for all of its deliveries.
	HighWater int
}

// Bus is the in-process point-to-point transport connecting all
// participants. Each rank owns one mailbox; sends never block the
// sender beyond the high-water drain, and receives are driven by
// probe-with-timeout polls.
type Bus struct {
	mailboxes []chan Envelope
	highWater int
	barrier   *barrier
	done      chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger
}

// New creates a bus with one mailbox per participant.
func New(cfg Config) *Bus {
	if cfg.Participants <= 0 {
		cfg.Participants = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.HighWater <= 0 {
		cfg.HighWater = 100
	}

	mailboxes := make([]chan Envelope, cfg.Participants)
	for i := range mailboxes {
		mailboxes[i] = make(chan Envelope, cfg.BufferSize)
	}

	return &Bus{
		mailboxes: mailboxes,
		highWater: cfg.HighWater,
		barrier:   newBarrier(cfg.Participants),
		done:      make(chan struct{}),
		logger:    log.WithComponent("bus"),
	}
}

// Size returns the number of ranks.
func (b *Bus) Size() int {
	return len(b.mailboxes)
}

// Join attaches a participant to its rank and returns the endpoint it
// communicates through.
func (b *Bus) Join(rank Rank, role types.Role) *Endpoint {
	return &Endpoint{
		bus:    b,
		rank:   rank,
		role:   role,
		logger: log.WithRank(string(role), int(rank)),
	}
}

// Interrupt posts a STOP envelope to every mailbox. It is used by the
// engine to translate external cancellation (signals, context) into
// the same shutdown path participants already understand.
func (b *Bus) Interrupt() {
	b.logger.Warn().Msg("interrupt requested, posting stop to all ranks")
	for rank := range b.mailboxes {
		b.post(Rank(rank), Envelope{From: types.RoleAnalyzer, Body: Stop})
	}
}

// Close releases any delivery goroutine still blocked on a full
// mailbox. Call it only after every participant has exited.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
}

// post delivers without blocking the caller, falling back to a
// goroutine when the mailbox is full.
func (b *Bus) post(to Rank, env Envelope) {
	select {
	case b.mailboxes[to] <- env:
	default:
		go func() {
			select {
			case b.mailboxes[to] <- env:
			case <-b.done:
			}
		}()
	}
}

// Endpoint is a participant's handle on the bus. Endpoints are not
// safe for concurrent use; each participant goroutine owns exactly
// one.
type Endpoint struct {
	bus      *Bus
	rank     Rank
	role     types.Role
	pending  sync.WaitGroup
	inflight atomic.Int64
	logger   zerolog.Logger
}

// Rank returns the endpoint's mailbox index.
func (ep *Endpoint) Rank() Rank {
	return ep.rank
}

// Role returns the role stamped on outgoing envelopes.
func (ep *Endpoint) Role() types.Role {
	return ep.role
}

// Send delivers body to the given rank without blocking. Delivery to a
// full mailbox is handed to a tracked goroutine; once the number of
// outstanding deliveries crosses the bus high-water mark the sender
// waits for all of them before continuing.
func (ep *Endpoint) Send(to Rank, body interface{}) {
	if int(to) < 0 || int(to) >= len(ep.bus.mailboxes) {
		ep.logger.Error().Int("to", int(to)).Msg("send to unknown rank dropped")
		return
	}

	metrics.EnvelopesSent.WithLabelValues(string(ep.role)).Inc()
	env := Envelope{From: ep.role, Body: body}

	select {
	case ep.bus.mailboxes[to] <- env:
		return
	default:
	}

	ep.pending.Add(1)
	ep.inflight.Add(1)
	go func() {
		defer ep.pending.Done()
		defer ep.inflight.Add(-1)
		select {
		case ep.bus.mailboxes[to] <- env:
		case <-ep.bus.done:
		}
	}()

	if ep.inflight.Load() > int64(ep.bus.highWater) {
		ep.logger.Debug().Int64("outstanding", ep.inflight.Load()).Msg("high water reached, draining sends")
		ep.Flush()
	}
}

// Broadcast sends body to every rank except the sender's own.
func (ep *Endpoint) Broadcast(body interface{}) {
	for rank := range ep.bus.mailboxes {
		if Rank(rank) == ep.rank {
			continue
		}
		ep.Send(Rank(rank), body)
	}
}

// Poll waits up to timeout for an envelope. The boolean is false when
// the window elapsed with nothing pending, which participants treat as
// pipeline quiescence.
func (ep *Endpoint) Poll(timeout time.Duration) (Envelope, bool) {
	select {
	case env := <-ep.bus.mailboxes[ep.rank]:
		return env, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case env := <-ep.bus.mailboxes[ep.rank]:
		return env, true
	case <-timer.C:
		return Envelope{}, false
	}
}

// TryPoll receives an envelope only if one is already pending.
func (ep *Endpoint) TryPoll() (Envelope, bool) {
	select {
	case env := <-ep.bus.mailboxes[ep.rank]:
		return env, true
	default:
		return Envelope{}, false
	}
}

// Flush blocks until every outstanding asynchronous delivery from this
// endpoint has completed.
func (ep *Endpoint) Flush() {
	ep.pending.Wait()
}

// Outstanding returns the number of in-flight asynchronous deliveries.
func (ep *Endpoint) Outstanding() int {
	return int(ep.inflight.Load())
}

// Drain consumes and discards envelopes until none arrives within the
// quiet window, returning how many were dropped. Used after STOP so
// straggler sends cannot wedge their senders.
func (ep *Endpoint) Drain(quiet time.Duration) int {
	n := 0
	for {
		if _, ok := ep.Poll(quiet); !ok {
			return n
		}
		n++
	}
}

// Barrier blocks until every rank on the bus has entered it. It is
// reusable across phases.
func (ep *Endpoint) Barrier() {
	ep.bus.barrier.wait()
}

// barrier is a reusable generation barrier sized to the bus.
type barrier struct {
	mu      sync.Mutex
	size    int
	count   int
	release chan struct{}
}

func newBarrier(size int) *barrier {
	return &barrier{
		size:    size,
		release: make(chan struct{}),
	}
}

func (b *barrier) wait() {
	b.mu.Lock()
	gen := b.release
	b.count++
	if b.count == b.size {
		b.count = 0
		b.release = make(chan struct{})
		close(gen)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	<-gen
}
