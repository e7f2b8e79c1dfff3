// Command iuart-pty exposes the simulated UART behind a pseudo-terminal, so
// any serial terminal program (picocom, screen, minicom) can talk to the
// driver's line editor as if it were a real serial device. The tool itself
// runs a trivial line service: every completed line is answered back.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/creack/pty"

	"github.com/jangala-dev/tinygo-iuart/iuart"
)

func main() {
	master, slave, err := pty.Open()
	if err != nil {
		log.Fatalf("pty: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	sim := iuart.NewSim()
	sim.Output = master
	u := iuart.New(sim)
	if err := u.Configure(iuart.Config{BaudRate: 115200}); err != nil {
		log.Fatalf("configure: %v", err)
	}
	sim.SetAutoDrain(true)

	fmt.Printf("serial line ready at %s (try: picocom %s)\n", slave.Name(), slave.Name())

	// Bytes from the terminal side become receive interrupts.
	go func() {
		var b [1]byte
		for {
			if _, err := master.Read(b[:]); err != nil {
				return
			}
			sim.PushByte(b[0])
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		master.Close()
		os.Exit(0)
	}()

	fmt.Fprintf(u, "iuart line service; ^C on this side drops the line\n")

	var line []byte
	for {
		c, err := u.GetChar()
		if err == iuart.ErrCanceled {
			fmt.Fprintf(u, "\n(line dropped)\n")
			line = line[:0]
			continue
		}
		if err != nil {
			log.Printf("read: %v", err)
			return
		}
		if c != '\n' {
			line = append(line, c)
			continue
		}
		fmt.Fprintf(u, "you said: %s\n", line)
		line = line[:0]
	}
}
