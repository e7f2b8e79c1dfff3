// iuart/debug_hooks.go

//go:build iuartdebug

package iuart

import "sync/atomic"

// Stats holds counters since the last reset.
type Stats struct {
	TxISRCount uint32 // TX-complete handler entries
	TxISRBytes uint32 // bytes drained from the ring by the handler
	RxISRCount uint32 // RX-complete handler entries

	TxEnqueued uint32 // bytes accepted by enqueue (direct or ring)
	TxRejected uint32 // enqueue attempts rejected with a full ring

	RelayOverwrites uint32 // relay bytes lost to a faster producer
	BellEchoes      uint32 // printable input dropped on a full line buffer

	NotifySent    uint32 // RX notify sends that succeeded
	NotifyDropped uint32 // RX notify sends coalesced away
}

func (u *UART) dbgTxISR(drained int) {
	atomic.AddUint32(&u.stats.TxISRCount, 1)
	atomic.AddUint32(&u.stats.TxISRBytes, uint32(drained))
}

func (u *UART) dbgRxISR() {
	atomic.AddUint32(&u.stats.RxISRCount, 1)
}

func (u *UART) dbgEnqueue(ok bool) {
	if ok {
		atomic.AddUint32(&u.stats.TxEnqueued, 1)
	} else {
		atomic.AddUint32(&u.stats.TxRejected, 1)
	}
}

func (u *UART) dbgRelayOverwrite() {
	atomic.AddUint32(&u.stats.RelayOverwrites, 1)
}

func (u *UART) dbgBell() {
	atomic.AddUint32(&u.stats.BellEchoes, 1)
}

func (u *UART) dbgNotify(sent bool) {
	if sent {
		atomic.AddUint32(&u.stats.NotifySent, 1)
	} else {
		atomic.AddUint32(&u.stats.NotifyDropped, 1)
	}
}

func (u *UART) DebugReset() {
	u.stats = Stats{}
}

func (u *UART) DebugStats() Stats {
	return Stats{
		TxISRCount: atomic.LoadUint32(&u.stats.TxISRCount),
		TxISRBytes: atomic.LoadUint32(&u.stats.TxISRBytes),
		RxISRCount: atomic.LoadUint32(&u.stats.RxISRCount),

		TxEnqueued: atomic.LoadUint32(&u.stats.TxEnqueued),
		TxRejected: atomic.LoadUint32(&u.stats.TxRejected),

		RelayOverwrites: atomic.LoadUint32(&u.stats.RelayOverwrites),
		BellEchoes:      atomic.LoadUint32(&u.stats.BellEchoes),

		NotifySent:    atomic.LoadUint32(&u.stats.NotifySent),
		NotifyDropped: atomic.LoadUint32(&u.stats.NotifyDropped),
	}
}
