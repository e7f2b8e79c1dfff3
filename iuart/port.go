// iuart/port.go

package iuart

// Status holds the hardware receive error flags. The flags are sticky: each
// stays set until cleared, so a flagged error is reported to the caller
// exactly once.
type Status uint8

const (
	// StatusFrameError indicates a framing error (bad stop bit, line break).
	StatusFrameError Status = 1 << iota
	// StatusOverrun indicates the hardware dropped a byte because the data
	// register was not read in time.
	StatusOverrun
)

// Port is the register-level UART the driver sits on. Implementations are a
// real device behind a build tag, or Sim on host builds.
//
// Bind attaches the driver's interrupt service methods to the port's
// "byte received" and "byte transmission complete" events; which hardware
// vectors those are is the port's business. The TX-complete handler must be
// invoked mutually exclusive with any section bracketed by MaskTxComplete/
// UnmaskTxComplete, and never before Bind has been called. Ports must not
// hold data-register locks while invoking a handler.
type Port interface {
	// Configure programs the baud rate and 8N1 framing and enables the
	// transmit and receive circuitry along with both completion interrupts.
	Configure(cfg Config) error
	// Bind installs the interrupt handlers for the two event sources.
	Bind(onRxComplete, onTxComplete func())
	// MaskTxComplete holds off delivery of the TX-complete event. On real
	// hardware this clears the interrupt-enable bit; on the simulator it
	// takes a lock the delivery path also takes. The window must stay
	// short: it is the driver's only mutual-exclusion mechanism.
	MaskTxComplete()
	// UnmaskTxComplete re-enables TX-complete delivery; a deferred event
	// fires after the unmask.
	UnmaskTxComplete()
	// WriteData writes one byte to the TX data register, starting its
	// transmission.
	WriteData(b byte)
	// ReadData reads the RX data register. Called only from the RX-complete
	// handler.
	ReadData() byte
	// Status returns the current receive error flags.
	Status() Status
	// ClearErrors clears the given receive error flags, leaving the rest
	// pending.
	ClearErrors(st Status)
	// TxBusy reports whether a byte is still in the shift register.
	TxBusy() bool
}
