// iuart/debug_stubs.go

//go:build !iuartdebug

package iuart

type Stats struct{}

func (u *UART) dbgTxISR(int)       {}
func (u *UART) dbgRxISR()          {}
func (u *UART) dbgEnqueue(bool)    {}
func (u *UART) dbgRelayOverwrite() {}
func (u *UART) dbgBell()           {}
func (u *UART) dbgNotify(bool)     {}
func (u *UART) DebugReset()        {}
func (u *UART) DebugStats() Stats  { return Stats{} }
