// Package engine runs the dining table: one goroutine per philosopher,
// contending for forks held in atomic slots.
//
// ARCHITECTURAL RULE: a fork changes hands only through a compare-and-swap on
// its slot. Nobody moves a fork from one owner to another directly; it must go
// back to the table (free) first. Every release broadcasts on the ChangeSignal
// so blocked philosophers re-test their slot.
//
// Observers (the HTTP API, the WebSocket hub, tests) read philosopher states
// and fork owners through lock-free snapshots and never block a philosopher.
package engine
