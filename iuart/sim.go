// iuart/sim.go

package iuart

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// Sim is a register-level simulation of the UART hardware: a data register,
// receive error flags, and the two completion events delivered to whatever
// handlers are bound. Tests drive it deterministically with PushByte and
// CompleteTx; tools run it free-running with SetAutoDrain, which paces
// TX completion at one character time for the configured baud.
//
// Everything written to the TX data register is captured on the simulated
// wire (see Wire) and copied to Output when set.
type Sim struct {
	// Output, when non-nil, receives every byte placed on the wire.
	// Set it before Configure; it is written outside the simulator lock.
	Output io.Writer

	// irq stands in for the TX interrupt-enable bit: MaskTxComplete holds it,
	// and CompleteTx delivers the handler under it, so delivery and masked
	// critical sections are mutually exclusive and a completion that arrives
	// while masked fires right after the unmask.
	irq sync.Mutex

	mu        sync.Mutex
	baud      uint32
	charTime  time.Duration
	autoDrain bool

	rxData byte
	status Status

	txBusy bool
	wire   bytes.Buffer

	onRx, onTx func()
}

// NewSim returns an idle simulated port.
func NewSim() *Sim { return &Sim{} }

// Configure records the baud rate and derives the character time
// (10 bits per character at 8N1).
func (s *Sim) Configure(cfg Config) error {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baud = cfg.BaudRate
	s.charTime = 10 * (time.Second / time.Duration(cfg.BaudRate))
	if s.charTime < 20*time.Microsecond {
		s.charTime = 20 * time.Microsecond
	}
	return nil
}

// Bind installs the RX-complete and TX-complete handlers.
func (s *Sim) Bind(onRxComplete, onTxComplete func()) {
	s.mu.Lock()
	s.onRx = onRxComplete
	s.onTx = onTxComplete
	s.mu.Unlock()
}

// MaskTxComplete holds off TX-complete delivery.
func (s *Sim) MaskTxComplete() { s.irq.Lock() }

// UnmaskTxComplete re-enables TX-complete delivery.
func (s *Sim) UnmaskTxComplete() { s.irq.Unlock() }

// SetAutoDrain toggles free-running mode: each WriteData schedules its own
// CompleteTx one character time later, as real hardware would.
func (s *Sim) SetAutoDrain(on bool) {
	s.mu.Lock()
	s.autoDrain = on
	s.mu.Unlock()
}

// WriteData places a byte in the shift register. The byte appears on the
// wire immediately (transmission order is what matters); completion is
// signalled separately by CompleteTx.
func (s *Sim) WriteData(b byte) {
	s.mu.Lock()
	s.wire.WriteByte(b)
	s.txBusy = true
	auto, d, out := s.autoDrain, s.charTime, s.Output
	s.mu.Unlock()

	if out != nil {
		out.Write([]byte{b})
	}
	if auto {
		time.AfterFunc(d, s.CompleteTx)
	}
}

// CompleteTx finishes the in-flight transmission and fires the TX-complete
// event. It is a no-op when the shift register is idle. The handler runs
// under the mask lock, without the data-register lock held.
func (s *Sim) CompleteTx() {
	s.mu.Lock()
	if !s.txBusy {
		s.mu.Unlock()
		return
	}
	s.txBusy = false
	h := s.onTx
	s.mu.Unlock()
	if h != nil {
		s.irq.Lock()
		h()
		s.irq.Unlock()
	}
}

// DrainAll steps CompleteTx until the transmitter goes idle, returning the
// number of bytes completed. The bound TX handler refills the shift
// register from the driver's ring as each byte finishes.
func (s *Sim) DrainAll() int {
	n := 0
	for s.TxBusy() {
		s.CompleteTx()
		n++
	}
	return n
}

// PushByte loads the RX data register and fires the receive event, as if a
// byte had just arrived on the line.
func (s *Sim) PushByte(b byte) {
	s.mu.Lock()
	s.rxData = b
	h := s.onRx
	s.mu.Unlock()
	if h != nil {
		h()
	}
}

// ReadData reads the RX data register.
func (s *Sim) ReadData() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rxData
}

// Status returns the receive error flags.
func (s *Sim) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ClearErrors clears the given receive error flags.
func (s *Sim) ClearErrors(st Status) {
	s.mu.Lock()
	s.status &^= st
	s.mu.Unlock()
}

// SetFrameError flags a framing error, as a line break would.
func (s *Sim) SetFrameError() {
	s.mu.Lock()
	s.status |= StatusFrameError
	s.mu.Unlock()
}

// SetOverrun flags a receive overrun.
func (s *Sim) SetOverrun() {
	s.mu.Lock()
	s.status |= StatusOverrun
	s.mu.Unlock()
}

// TxBusy reports whether a byte is in the shift register.
func (s *Sim) TxBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txBusy
}

// Wire returns a copy of every byte transmitted so far.
func (s *Sim) Wire() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.wire.Bytes()...)
}

// TakeWire returns the transmitted bytes and resets the capture.
func (s *Sim) TakeWire() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]byte(nil), s.wire.Bytes()...)
	s.wire.Reset()
	return out
}
