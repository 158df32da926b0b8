// Package progress defines the event shape stages use to report per-unit
// state and the Bus interface observers implement to receive it.
//
// Events are independent and unordered across unit IDs but ordered within one
// ID. Observers own any derived state; Tracker is the reusable per-ID state
// keeper used by renderers and the status server.
package progress
