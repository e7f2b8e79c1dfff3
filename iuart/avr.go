// iuart/avr.go

//go:build atmega

// AVR USART0 port. The RX/TX-complete vector names differ between ATmega
// parts (USART0_RX vs USART_RX and so on); TinyGo's interrupt numbering
// absorbs that, the event semantics are identical.

package iuart

import (
	"device/avr"
	"runtime/interrupt"

	"machine"
)

type avrPort struct {
	onRx, onTx func()
	rxInt      interrupt.Interrupt
	txInt      interrupt.Interrupt
}

// USART0 is the port for the AVR's first hardware serial port.
var USART0 Port = &avrPort{}

func (p *avrPort) Configure(cfg Config) error {
	// Prescale for 16x oversampling.
	presc := machine.CPUFrequency()/(16*cfg.BaudRate) - 1
	avr.UBRR0H.Set(uint8(presc >> 8))
	avr.UBRR0L.Set(uint8(presc))

	// 8-bit frames, transmitter and receiver on.
	avr.UCSR0C.SetBits(avr.UCSR0C_UCSZ00 | avr.UCSR0C_UCSZ01)
	avr.UCSR0B.SetBits(avr.UCSR0B_TXEN0 | avr.UCSR0B_RXEN0)

	if p.rxInt == (interrupt.Interrupt{}) {
		p.rxInt = interrupt.New(avr.IRQ_USART_RX, p.handleRx)
		p.txInt = interrupt.New(avr.IRQ_USART_TX, p.handleTx)
		p.rxInt.Enable()
		p.txInt.Enable()
	}
	avr.UCSR0B.SetBits(avr.UCSR0B_RXCIE0 | avr.UCSR0B_TXCIE0)
	return nil
}

func (p *avrPort) Bind(onRxComplete, onTxComplete func()) {
	p.onRx = onRxComplete
	p.onTx = onTxComplete
}

// MaskTxComplete clears TXCIE0 so the TX-complete vector cannot fire inside
// a critical section. AVR clears the global interrupt bit on ISR entry, so a
// lock shared with an ISR could never be handed over; the enable bit is the
// only usable exclusion mechanism here.
func (p *avrPort) MaskTxComplete() { avr.UCSR0B.ClearBits(avr.UCSR0B_TXCIE0) }

// UnmaskTxComplete re-enables the TX-complete vector; a completion that
// happened while masked raises the interrupt now.
func (p *avrPort) UnmaskTxComplete() { avr.UCSR0B.SetBits(avr.UCSR0B_TXCIE0) }

// The ISRs call the bound handlers directly: interrupts are globally
// disabled in ISR context, and foreground critical sections are excluded by
// the TXCIE0 mask, so the handlers need no locking of their own.
func (p *avrPort) handleRx(interrupt.Interrupt) {
	if p.onRx != nil {
		p.onRx()
	}
}

func (p *avrPort) handleTx(interrupt.Interrupt) {
	if p.onTx != nil {
		p.onTx()
	}
}

func (p *avrPort) WriteData(b byte) { avr.UDR0.Set(b) }

func (p *avrPort) ReadData() byte { return avr.UDR0.Get() }

func (p *avrPort) Status() Status {
	var st Status
	a := avr.UCSR0A.Get()
	if a&avr.UCSR0A_FE0 != 0 {
		st |= StatusFrameError
	}
	if a&avr.UCSR0A_DOR0 != 0 {
		st |= StatusOverrun
	}
	return st
}

// ClearErrors is a no-op: on AVR the error flags are valid until the data
// register is read, which the RX handler already does. When both flags were
// raised by one byte, only the first is reported; the hardware offers no way
// to keep the second pending.
func (p *avrPort) ClearErrors(Status) {}

func (p *avrPort) TxBusy() bool {
	return !avr.UCSR0A.HasBits(avr.UCSR0A_UDRE0)
}
