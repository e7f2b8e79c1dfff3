//go:build linux

// Command iuart-console attaches the simulated UART to the local terminal:
// stdin bytes arrive as receive interrupts, transmitted bytes land on
// stdout. The terminal is put in raw mode so the driver's line editor does
// the echoing and editing. ^C ends the session.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jangala-dev/tinygo-iuart/iuart"
)

func main() {
	fd := int(os.Stdin.Fd())
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		log.Fatalf("get termios: %v", err)
	}
	raw := *saved
	raw.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	raw.Iflag &^= unix.ICRNL | unix.INLCR | unix.IXON
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		log.Fatalf("set termios: %v", err)
	}
	restore := func() { unix.IoctlSetTermios(fd, unix.TCSETS, saved) }
	defer restore()

	sim := iuart.NewSim()
	sim.Output = os.Stdout
	u := iuart.New(sim)
	if err := u.Configure(iuart.Config{BaudRate: 115200}); err != nil {
		restore()
		log.Fatalf("configure: %v", err)
	}
	sim.SetAutoDrain(true)

	// Every typed byte becomes a receive interrupt.
	go func() {
		var b [1]byte
		for {
			if _, err := os.Stdin.Read(b[:]); err != nil {
				return
			}
			sim.PushByte(b[0])
		}
	}()

	fmt.Fprintf(u, "iuart console; type a line, ^C quits\n")

	var line []byte
	for {
		c, err := u.GetChar()
		if err == iuart.ErrCanceled {
			fmt.Fprintf(u, "\nbye\n")
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "read: %v\r\n", err)
			break
		}
		if c != '\n' {
			line = append(line, c)
			continue
		}
		fmt.Fprintf(u, "got %q\n", line)
		line = line[:0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	u.Flush(ctx)
}
