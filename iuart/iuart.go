// iuart/iuart.go

// Package iuart provides an interrupt-driven UART driver with a software TX
// ring buffer and a line-edited RX path. Transmit is non-blocking at the
// PutChar level (the TX-complete interrupt drains the ring); receive
// assembles raw bytes into edited lines and hands them out one character at
// a time. The driver is hardware-agnostic: it talks to a Port, which is
// either a real UART behind a build tag or the register-level simulation in
// sim.go.
package iuart

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

var (
	// ErrTxOverflow is returned by PutChar when the TX ring is full.
	// The ring state is unchanged; the caller may retry or drop the byte.
	ErrTxOverflow = errors.New("UART tx buffer full")
	// ErrFraming is returned by GetChar on a hardware framing error
	// (e.g. a line break condition).
	ErrFraming = errors.New("UART framing error")
	// ErrOverrun is returned by GetChar when the hardware flags a receive
	// overrun.
	ErrOverrun = errors.New("UART rx overrun")
	// ErrCanceled is returned by GetChar when the user aborts the current
	// line with Ctrl-C. The partial line is discarded.
	ErrCanceled = errors.New("input canceled")
)

// Config holds the UART configuration. The frame format is fixed at 8N1.
type Config struct {
	BaudRate uint32
}

const (
	txBufferSize = 256 // one slot is sacrificed to tell full from empty
	rxBufSize    = 80  // line buffer, includes the terminating \n
)

// relayFull marks the RX relay word as holding an unconsumed byte.
const relayFull uint32 = 1 << 8

// UART is a single serial port. All state is fixed-size and lives in the
// struct; nothing is allocated after New.
type UART struct {
	port Port
	baud uint32

	// TX state is protected by the port's TX-complete mask: the enqueue
	// critical section brackets itself with MaskTxComplete/UnmaskTxComplete,
	// and the port delivers handleTxComplete mutually exclusive with any
	// masked section. The window is held only for a few instructions.
	txBuf      [txBufferSize]byte
	nextToSend int // advanced only by the TX-complete handler
	nextFree   int // advanced only by the enqueue path
	sending    bool

	// relay is the single-slot hand-off between the RX-complete handler and
	// the line editor. A byte that is not consumed before the next one
	// arrives is overwritten silently; the hardware is assumed fast enough
	// that this does not happen in practice.
	relay atomic.Uint32

	// Line editor state. Touched only from the reading goroutine.
	line [rxBufSize]byte
	cur  int // write cursor; persists across calls (partial lines survive errors)
	rxp  int // read cursor into a completed line; -1 when none pending

	notify   chan struct{} // coalesced RX wake-up
	txNotify chan struct{} // coalesced TX progress/space wake-up

	stats Stats
}

// New returns an unconfigured UART bound to port. Call Configure before any I/O.
func New(port Port) *UART {
	return &UART{
		port:     port,
		rxp:      -1,
		notify:   make(chan struct{}, 1),
		txNotify: make(chan struct{}, 1),
	}
}

// Configure resets the driver to the empty state, programs the port for the
// configured baud rate at 8N1, and binds the two interrupt service methods.
// It must be called once before any I/O; reconfiguration at runtime is not
// supported.
func (u *UART) Configure(cfg Config) error {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	u.baud = cfg.BaudRate

	u.port.MaskTxComplete()
	u.nextToSend = 0
	u.nextFree = 0
	u.sending = false
	u.port.UnmaskTxComplete()

	u.relay.Store(0)
	u.cur = 0
	u.rxp = -1

	u.port.Bind(u.handleRxComplete, u.handleTxComplete)
	return u.port.Configure(cfg)
}

// Readable returns a coalesced notification for RX activity. The RX-complete
// handler sends on this channel; callers must re-check state after waking.
func (u *UART) Readable() <-chan struct{} { return u.notify }

// Writable returns a coalesced notification for TX progress. The TX-complete
// handler sends on this channel when it drains a byte or goes idle.
func (u *UART) Writable() <-chan struct{} { return u.txNotify }

// TxFree returns the remaining space in the TX ring in bytes.
func (u *UART) TxFree() int { return txBufferSize - 1 - u.TxPending() }

// TxPending returns the number of bytes queued in the TX ring, not counting
// a byte currently in the port's shift register.
func (u *UART) TxPending() int {
	u.port.MaskTxComplete()
	defer u.port.UnmaskTxComplete()
	return (u.nextFree - u.nextToSend + txBufferSize) % txBufferSize
}

// Buffered returns the number of undelivered characters of a completed input
// line, or 0 when no line is pending.
func (u *UART) Buffered() int {
	if u.rxp < 0 {
		return 0
	}
	return u.cur - u.rxp
}

// RxPending reports whether the RX relay holds a byte the line editor has
// not consumed yet.
func (u *UART) RxPending() bool { return u.relay.Load()&relayFull != 0 }

// Flush blocks until every queued byte has left the port: the TX ring is
// empty, no drain is in progress, and the port's shift register is idle.
// Because going idle does not raise an interrupt, Flush uses a short timed
// poll in addition to txNotify wakes.
func (u *UART) Flush(ctx context.Context) error {
	tick := u.drainTick()
	for {
		u.port.MaskTxComplete()
		idle := u.nextToSend == u.nextFree && !u.sending
		u.port.UnmaskTxComplete()
		if idle && !u.port.TxBusy() {
			return nil
		}
		select {
		case <-u.txNotify:
			// Progress likely occurred; loop and re-check.
		case <-time.After(tick):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drainTick returns a short polling interval based on the configured baud:
// approximately two character times at 8N1, with a lower bound.
func (u *UART) drainTick() time.Duration {
	if u.baud == 0 {
		return 50 * time.Microsecond
	}
	perBit := time.Second / time.Duration(u.baud)
	t := 2 * 10 * perBit
	if t < 20*time.Microsecond {
		t = 20 * time.Microsecond
	}
	return t
}

// wakeRx sends a coalesced RX notification.
func (u *UART) wakeRx() {
	select {
	case u.notify <- struct{}{}:
		u.dbgNotify(true)
	default:
		u.dbgNotify(false)
	}
}

// wakeTx sends a coalesced TX notification.
func (u *UART) wakeTx() {
	select {
	case u.txNotify <- struct{}{}:
	default:
	}
}
