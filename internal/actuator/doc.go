// Package actuator drives the door strike.
//
// The strike is a single digital output: HIGH releases the door, LOW holds
// it locked. Locked is the power-on state and the state every failure path
// returns to. Controller.Unlock raises the line for a fixed hold window and
// always lowers it again, whether the window expires, the context is
// cancelled, or the hold panics.
//
// # Line drivers
//
//   - GPIO: a periph.io pin such as "GPIO17" on a Raspberry Pi header.
//   - Simulated: an in-memory line that records every transition, used on
//     bench rigs without a strike and in tests.
//
// # Thread Safety
//
// A Controller serialises unlocks. A second Unlock while one is holding
// returns ErrBusy without touching the line. State is safe to call from any
// goroutine.
package actuator
