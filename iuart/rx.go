// iuart/rx.go

package iuart

import (
	"context"
	"time"
)

// Control bytes understood by the line editor.
const (
	ctrlC = 'c' & 0x1f
	ctrlR = 'r' & 0x1f
	ctrlU = 'u' & 0x1f
	ctrlW = 'w' & 0x1f
	del   = 0x7f
)

// handleRxComplete services the "byte received" event: it copies the data
// register into the relay and wakes a blocked reader. No line editing
// happens here; the handler must stay minimal so the next byte is not
// missed. An unconsumed relay byte is overwritten.
func (u *UART) handleRxComplete() {
	b := u.port.ReadData()
	if old := u.relay.Swap(relayFull | uint32(b)); old&relayFull != 0 {
		u.dbgRelayOverwrite()
	}
	u.dbgRxISR()
	u.wakeRx()
}

// GetChar returns the next character of line-edited input, blocking
// indefinitely until a full line has been entered. See GetCharContext.
func (u *UART) GetChar() (byte, error) {
	return u.GetCharContext(context.Background())
}

// GetCharContext returns the next character of line-edited input.
//
// Raw bytes are accumulated into an internal line buffer until a newline
// arrives (a carriage return counts as one, stty ICRNL style); printable
// bytes are echoed back through PutChar as they are typed. While
// accumulating, the following edits apply:
//
//	\b or DEL   delete the previous character
//	^U          kill the entire line
//	^W          delete back to the previous space
//	^R          send a CR and reprint the line so far
//	^C          abort: discard the partial line, return ErrCanceled
//	\t          replaced by a single space
//
// Other control bytes are ignored. The buffer holds up to 79 characters
// plus the terminating newline; once full, further printable input is
// answered with a BEL echo and dropped, though editing still works.
//
// Once a line is complete, successive calls drain it one character at a
// time through the terminating '\n', after which accumulation starts over.
//
// A hardware framing error or overrun is reported immediately as ErrFraming
// or ErrOverrun, once per flagged event; the partial line is kept and
// resumed on the next call. Cancelling ctx returns ctx.Err() with the
// partial line likewise intact.
func (u *UART) GetCharContext(ctx context.Context) (byte, error) {
	if u.rxp < 0 {
		if err := u.accumulate(ctx); err != nil {
			return 0, err
		}
	}
	return u.takeBuffered(), nil
}

// accumulate runs the editor until a line is complete (rxp set to the
// buffer start) or an error interrupts it.
func (u *UART) accumulate(ctx context.Context) error {
	for {
		c, err := u.nextRaw(ctx)
		if err != nil {
			return err
		}

		if c == '\r' {
			c = '\n'
		}
		if c == '\n' {
			u.line[u.cur] = c
			u.cur++
			u.echo(c)
			u.rxp = 0
			return nil
		}
		if c == '\t' {
			c = ' '
		}

		if (c >= ' ' && c <= '\x7e') || c >= '\xa0' {
			if u.cur == rxBufSize-1 { // keep room for the trailing \n
				u.echo('\a')
				u.dbgBell()
			} else {
				u.line[u.cur] = c
				u.cur++
				u.echo(c)
			}
			continue
		}

		switch c {
		case ctrlC:
			u.cur = 0
			return ErrCanceled

		case '\b', del:
			if u.cur > 0 {
				u.rubout()
			}

		case ctrlR:
			u.echo('\r')
			for i := 0; i < u.cur; i++ {
				u.echo(u.line[i])
			}

		case ctrlU:
			for u.cur > 0 {
				u.rubout()
			}

		case ctrlW:
			for u.cur > 0 && u.line[u.cur-1] != ' ' {
				u.rubout()
			}
		}
	}
}

// nextRaw waits for the next raw byte from the relay, checking the hardware
// error flags on every pass. The wait is event-driven via the RX notify
// channel with a short timed poll as fallback (error flags do not raise an
// interrupt of their own).
func (u *UART) nextRaw(ctx context.Context) (byte, error) {
	tick := u.drainTick()
	for {
		// Clear only the flag being reported, so a simultaneous second
		// error surfaces on the next call instead of being swallowed.
		if st := u.port.Status(); st != 0 {
			if st&StatusFrameError != 0 {
				u.port.ClearErrors(StatusFrameError)
				return 0, ErrFraming
			}
			u.port.ClearErrors(StatusOverrun)
			return 0, ErrOverrun
		}
		if v := u.relay.Swap(0); v&relayFull != 0 {
			return byte(v), nil
		}
		select {
		case <-u.notify:
			// Coalesced wake; re-check.
		case <-time.After(tick):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// takeBuffered delivers the next character of the completed line. Delivering
// the newline resets the editor for the next line.
func (u *UART) takeBuffered() byte {
	c := u.line[u.rxp]
	u.rxp++
	if c == '\n' {
		u.rxp = -1
		u.cur = 0
	}
	return c
}

// rubout erases the last buffered character, both from the buffer and
// visually (backspace, space, backspace).
func (u *UART) rubout() {
	u.echo('\b')
	u.echo(' ')
	u.echo('\b')
	u.cur--
}

// echo writes one byte back through the output primitive. Echo is best
// effort: a full TX ring drops the echo rather than stalling input.
func (u *UART) echo(c byte) {
	_ = u.PutChar(c)
}

// Read implements io.Reader over line-edited input. It blocks until at
// least one character is available, then returns as much of the completed
// line as fits in p. Errors from the editor (ErrFraming, ErrOverrun,
// ErrCanceled) are passed through with n == 0.
func (u *UART) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	c, err := u.GetChar()
	if err != nil {
		return 0, err
	}
	p[0] = c
	n := 1
	for n < len(p) && u.rxp >= 0 {
		p[n] = u.takeBuffered()
		n++
	}
	return n, nil
}
