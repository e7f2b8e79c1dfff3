// iuart/tx.go

package iuart

// PutChar queues one byte for transmission. A line feed is expanded to CR LF
// by two sequential enqueues. If the port is idle the byte goes straight to
// the data register ("priming the pump"); otherwise it is appended to the TX
// ring under the TX-complete mask and drained later by the handler.
//
// PutChar never blocks. When the ring is full it returns ErrTxOverflow and
// leaves the ring unchanged. If the CR half of a CR LF pair overflows, the
// LF is not attempted; see enqueue.
func (u *UART) PutChar(c byte) error {
	if c == '\n' {
		if err := u.enqueue('\r'); err != nil {
			return err
		}
	}
	return u.enqueue(c)
}

// enqueue places one raw byte on the TX path. The critical section is
// bracketed by the port's TX-complete mask: while it is held the TX-complete
// handler cannot run, so nextToSend cannot move under us. The mask is
// released on every exit path.
func (u *UART) enqueue(c byte) error {
	u.port.MaskTxComplete()
	defer u.port.UnmaskTxComplete()

	if !u.sending {
		u.sending = true
		u.port.WriteData(c)
		u.dbgEnqueue(true)
		return nil
	}

	next := (u.nextFree + 1) % txBufferSize
	if next == u.nextToSend { // full
		u.dbgEnqueue(false)
		return ErrTxOverflow
	}
	u.txBuf[u.nextFree] = c
	u.nextFree = next
	u.dbgEnqueue(true)
	return nil
}

// handleTxComplete services the "byte transmission complete" event. If the
// ring is empty it clears the sending flag and goes idle; otherwise it moves
// the next byte to the data register. It is the only mutator of nextToSend
// and runs in bounded time. The handler takes no lock of its own: the port
// delivers it in interrupt context on hardware, and under the mask lock on
// the simulator, so it never runs inside a masked section.
func (u *UART) handleTxComplete() {
	if u.nextToSend == u.nextFree { // nothing queued
		u.sending = false
		u.dbgTxISR(0)
		u.wakeTx()
		return
	}
	c := u.txBuf[u.nextToSend]
	u.nextToSend = (u.nextToSend + 1) % txBufferSize

	u.port.WriteData(c)
	u.dbgTxISR(1)
	u.wakeTx()
}

// writeBlocking enqueues one raw byte, waiting on TX progress whenever the
// ring is full.
func (u *UART) writeBlocking(c byte) {
	for {
		if err := u.enqueue(c); err == nil {
			return
		}
		<-u.txNotify
	}
}

// Write implements io.Writer. It blocks until every byte of p has been
// accepted by the driver (sent directly or queued in the ring); it does not
// wait for the port to drain — use Flush for on-the-wire completion. Line
// feeds are expanded to CR LF as in PutChar.
func (u *UART) Write(p []byte) (int, error) {
	for _, c := range p {
		if c == '\n' {
			u.writeBlocking('\r')
		}
		u.writeBlocking(c)
	}
	return len(p), nil
}

// WriteByte writes a single byte with the same blocking behaviour as Write.
func (u *UART) WriteByte(c byte) error {
	_, err := u.Write([]byte{c})
	return err
}
