// Package central implements the BLE central-role client that finds one named
// peripheral, connects to it, and maps one primary service and its
// characteristics.
//
// A Session is an event-driven state machine. Transports report advertisements,
// connect results, disconnects and discovery attributes as Events; every
// Event goes through Session.Dispatch on a single goroutine (see Loop), so the
// session needs no locking. Requests the session issues (scan start/stop,
// connect, discovery, disconnect) go out through the Transport interface and
// their outcomes come back later as separate Events.
//
// Flow:
//
//	Scanning --match--> Connecting --ok--> service phase --found--> characteristic phase --done--> Ready
//	     any disconnect unwinds to Disconnected / Idle
package central
