// Command iuart-selftest runs scripted end-to-end checks of the driver
// against the simulated port and reports one PASS/FAIL line per scenario.
package main

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/jangala-dev/tinygo-iuart/iuart"
)

type scenario struct {
	name string
	run  func() error
}

func main() {
	scenarios := []scenario{
		{"tx-fifo-order", txFIFOOrder},
		{"tx-overflow", txOverflow},
		{"tx-reprime", txReprime},
		{"rx-line-editing", rxLineEditing},
		{"rx-kill-line", rxKillLine},
	}

	failed := 0
	for _, s := range scenarios {
		if err := s.run(); err != nil {
			fmt.Printf("FAIL %-18s %v\n", s.name, err)
			failed++
			continue
		}
		fmt.Printf("PASS %s\n", s.name)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func newUART() (*iuart.UART, *iuart.Sim, error) {
	sim := iuart.NewSim()
	u := iuart.New(sim)
	err := u.Configure(iuart.Config{BaudRate: 115200})
	return u, sim, err
}

func txFIFOOrder() error {
	u, sim, err := newUART()
	if err != nil {
		return err
	}
	for _, c := range []byte("one\ntwo\n") {
		if err := u.PutChar(c); err != nil {
			return err
		}
	}
	sim.DrainAll()
	if got, want := sim.Wire(), []byte("one\r\ntwo\r\n"); !bytes.Equal(got, want) {
		return fmt.Errorf("wire %q, want %q", got, want)
	}
	return nil
}

func txOverflow() error {
	u, _, err := newUART()
	if err != nil {
		return err
	}
	// One byte primes; the ring then takes its full capacity.
	if err := u.PutChar('p'); err != nil {
		return err
	}
	for u.TxFree() > 0 {
		if err := u.PutChar('.'); err != nil {
			return err
		}
	}
	if err := u.PutChar('!'); err != iuart.ErrTxOverflow {
		return fmt.Errorf("expected overflow, got %v", err)
	}
	return nil
}

func txReprime() error {
	u, sim, err := newUART()
	if err != nil {
		return err
	}
	if err := u.PutChar('a'); err != nil {
		return err
	}
	sim.DrainAll()
	if sim.TxBusy() {
		return fmt.Errorf("transmitter still busy after drain")
	}
	if err := u.PutChar('b'); err != nil {
		return err
	}
	if got := sim.Wire(); !bytes.Equal(got, []byte("ab")) {
		return fmt.Errorf("second byte did not prime a direct send: wire %q", got)
	}
	return nil
}

func rxLineEditing() error {
	return runLine("ab\bc\r", "ac\n")
}

func rxKillLine() error {
	return runLine("junk\x15ok\r", "ok\n") // 0x15 is ^U
}

// runLine types input into the receive path and checks the delivered line.
func runLine(input, want string) error {
	u, sim, err := newUART()
	if err != nil {
		return err
	}

	got := make(chan []byte, 1)
	go func() {
		var line []byte
		for {
			c, err := u.GetChar()
			if err != nil {
				got <- []byte(fmt.Sprintf("error: %v", err))
				return
			}
			line = append(line, c)
			if c == '\n' {
				got <- line
				return
			}
		}
	}()

	for i := 0; i < len(input); i++ {
		sim.PushByte(input[i])
		deadline := time.Now().Add(2 * time.Second)
		for u.RxPending() {
			if time.Now().After(deadline) {
				return fmt.Errorf("relay byte %q never consumed", input[i])
			}
			runtime.Gosched()
		}
	}

	select {
	case line := <-got:
		if string(line) != want {
			return fmt.Errorf("line %q, want %q", line, want)
		}
	case <-time.After(2 * time.Second):
		return fmt.Errorf("timed out waiting for line")
	}
	return nil
}
