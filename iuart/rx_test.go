package iuart

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// rxEvent is one GetChar result observed by the reader goroutine.
type rxEvent struct {
	c   byte
	err error
}

// startReader runs GetCharContext in a loop, forwarding every result. It
// stops on a context error so tests cannot leak the goroutine.
func startReader(ctx context.Context, u *UART) <-chan rxEvent {
	ev := make(chan rxEvent, 256)
	go func() {
		for {
			c, err := u.GetCharContext(ctx)
			ev <- rxEvent{c, err}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
		}
	}()
	return ev
}

// feed delivers bytes one at a time, waiting for the single-slot relay to be
// consumed before the next arrives. Pushing faster than the reader polls
// overwrites the relay; that loss is by contract, so tests pace themselves.
func feed(t *testing.T, u *UART, sim *Sim, data string) {
	t.Helper()
	for i := 0; i < len(data); i++ {
		sim.PushByte(data[i])
		waitRelayIdle(t, u)
	}
}

// waitRelayIdle spins until the reader has consumed the relay byte.
func waitRelayIdle(t *testing.T, u *UART) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for u.RxPending() {
		if time.Now().After(deadline) {
			t.Fatal("relay byte never consumed")
		}
		runtime.Gosched()
	}
}

func nextEvent(t *testing.T, ev <-chan rxEvent) rxEvent {
	t.Helper()
	select {
	case e := <-ev:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for input")
		return rxEvent{}
	}
}

// expectLine asserts that the next events deliver exactly want, error-free.
func expectLine(t *testing.T, ev <-chan rxEvent, want string) {
	t.Helper()
	for i := 0; i < len(want); i++ {
		e := nextEvent(t, ev)
		require.NoError(t, e.err)
		require.Equalf(t, want[i], e.c, "character %d of %q", i, want)
	}
}

func newReaderUART(t *testing.T) (*UART, *Sim, <-chan rxEvent) {
	t.Helper()
	u, sim := newTestUART(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return u, sim, startReader(ctx, u)
}

func TestGetChar_LineDeliveryAndEcho(t *testing.T) {
	u, sim, ev := newReaderUART(t)

	feed(t, u, sim, "hello\r")
	expectLine(t, ev, "hello\n")

	sim.DrainAll()
	require.Equal(t, []byte("hello\r\n"), sim.Wire(), "echo should map CR to CRLF")
}

func TestGetChar_Backspace(t *testing.T) {
	u, sim, ev := newReaderUART(t)

	feed(t, u, sim, "ab\bc\n")
	expectLine(t, ev, "ac\n")

	sim.DrainAll()
	require.Equal(t, []byte("ab\b \bc\r\n"), sim.Wire())
}

func TestGetChar_BackspaceOnEmptyLineIsIgnored(t *testing.T) {
	u, sim, ev := newReaderUART(t)

	feed(t, u, sim, "\b\x7fx\r")
	expectLine(t, ev, "x\n")

	sim.DrainAll()
	require.Equal(t, []byte("x\r\n"), sim.Wire())
}

func TestGetChar_TabBecomesSpace(t *testing.T) {
	u, sim, ev := newReaderUART(t)

	feed(t, u, sim, "a\tb\n")
	expectLine(t, ev, "a b\n")
}

func TestGetChar_KillLine(t *testing.T) {
	u, sim, ev := newReaderUART(t)

	feed(t, u, sim, "test"+string(rune(ctrlU))+"\n")
	expectLine(t, ev, "\n")

	sim.DrainAll()
	require.Equal(t, []byte("test"+strings.Repeat("\b \b", 4)+"\r\n"), sim.Wire())
}

func TestGetChar_KillWord(t *testing.T) {
	u, sim, ev := newReaderUART(t)

	feed(t, u, sim, "foo bar"+string(rune(ctrlW))+"baz\n")
	expectLine(t, ev, "foo baz\n")
}

func TestGetChar_Redraw(t *testing.T) {
	u, sim, ev := newReaderUART(t)

	feed(t, u, sim, "hi"+string(rune(ctrlR))+"\n")
	expectLine(t, ev, "hi\n")

	sim.DrainAll()
	require.Equal(t, []byte("hi\rhi\r\n"), sim.Wire())
}

func TestGetChar_CancelDiscardsPartialLine(t *testing.T) {
	u, sim, ev := newReaderUART(t)

	feed(t, u, sim, "abc"+string(rune(ctrlC)))
	e := nextEvent(t, ev)
	require.ErrorIs(t, e.err, ErrCanceled)

	feed(t, u, sim, "ok\r")
	expectLine(t, ev, "ok\n")
}

func TestGetChar_OtherControlBytesIgnored(t *testing.T) {
	u, sim, ev := newReaderUART(t)

	feed(t, u, sim, "a\x01\x1bb\n")
	expectLine(t, ev, "ab\n")
}

func TestGetChar_HighBytesArePrintable(t *testing.T) {
	u, sim, ev := newReaderUART(t)

	feed(t, u, sim, "\xa3\xff\n")
	expectLine(t, ev, "\xa3\xff\n")
}

func TestGetChar_FullBufferBellsAndStillEdits(t *testing.T) {
	u, sim, ev := newReaderUART(t)

	fill := strings.Repeat("x", rxBufSize-1)
	feed(t, u, sim, fill)     // fills every slot except the \n slot
	feed(t, u, sim, "y")      // rejected with a bell
	feed(t, u, sim, "\bz\r")  // editing still works

	want := fill[:rxBufSize-2] + "z\n"
	expectLine(t, ev, want)

	sim.DrainAll()
	require.Contains(t, string(sim.Wire()), "\a")
}

func TestGetChar_FramingErrorOnceAndPartialRetained(t *testing.T) {
	u, sim, ev := newReaderUART(t)

	feed(t, u, sim, "par")
	sim.SetFrameError()

	e := nextEvent(t, ev)
	require.ErrorIs(t, e.err, ErrFraming)

	// The flag was consumed with the error; the partial line survives.
	feed(t, u, sim, "ty\r")
	expectLine(t, ev, "party\n")
}

func TestGetChar_Overrun(t *testing.T) {
	_, sim, ev := newReaderUART(t)

	sim.SetOverrun()
	e := nextEvent(t, ev)
	require.ErrorIs(t, e.err, ErrOverrun)
}

func TestGetChar_SimultaneousErrorFlagsReportedInTurn(t *testing.T) {
	_, sim, ev := newReaderUART(t)

	// Both flags raised before the reader looks: each surfaces on its own
	// call rather than the second being lost with the first.
	sim.SetFrameError()
	sim.SetOverrun()

	e := nextEvent(t, ev)
	require.ErrorIs(t, e.err, ErrFraming)
	e = nextEvent(t, ev)
	require.ErrorIs(t, e.err, ErrOverrun)
}

func TestGetCharContext_DeadlineWithNoInput(t *testing.T) {
	u, _ := newTestUART(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := u.GetCharContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRelay_SecondByteOverwritesFirst(t *testing.T) {
	u, sim := newTestUART(t)

	// No reader polling: the second byte lands before the first is consumed
	// and silently replaces it. This is the documented relay contract.
	sim.PushByte('a')
	sim.PushByte('b')
	require.True(t, u.RxPending())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ev := startReader(ctx, u)

	// Let the reader absorb the surviving byte before ending the line;
	// pushing sooner would overwrite it too.
	waitRelayIdle(t, u)
	feed(t, u, sim, "\r")
	expectLine(t, ev, "b\n")
}

func TestRead_DeliversEditedLine(t *testing.T) {
	u, sim := newTestUART(t)

	type result struct {
		n   int
		err error
		buf [64]byte
	}
	res := make(chan result, 1)
	go func() {
		var r result
		r.n, r.err = u.Read(r.buf[:])
		res <- r
	}()

	feed(t, u, sim, "hey\r")

	select {
	case r := <-res:
		require.NoError(t, r.err)
		require.Equal(t, "hey\n", string(r.buf[:r.n]))
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Read")
	}
}
