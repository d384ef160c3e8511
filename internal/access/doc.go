// Package access runs the door's access cycle.
//
// One pass of the cycle polls the reader, pseudonymizes a presented UID,
// asks the authorization service about the token and, only when the answer
// is Permitted, releases the strike for the hold window:
//
//	Idle (poll) -> Reading -> Authorizing -> Unlocking -> Idle
//	  |              |             \-> Idle (Denied / Indeterminate)
//	  |              \-> Idle (tokenize error)
//	  \-> Idle (nothing presented, read error)
//
// The cycle is strictly sequential: a card presented while the strike is
// held is not read until the next pass. Authorization always completes
// before the actuator is touched.
//
// # Observers
//
// Every pass that read a card produces an Outcome, delivered to each
// registered Observer after the strike is locked again. Observers cannot
// influence the decision: errors are logged and panics recovered. Wrap slow
// sinks in a Dispatcher so they run off the cycle goroutine.
//
// The raw UID never leaves Step; it is zeroed once the token is computed.
package access
