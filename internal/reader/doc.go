// Package reader provides proximity-card readers for the access cycle.
//
// A Reader is polled once per cycle. Poll returns promptly: either the UID
// of the card currently in the field, or "nothing presented". Raw UIDs are
// handed straight to the pseudonymizer and are never logged by this package.
//
// # Drivers
//
//   - PN532: NXP PN532 NFC controller on an I²C bus (periph.io), reading
//     ISO14443A cards at 106 kbps.
//   - Bench: UIDs injected over MQTT, for test rigs without a reader.
//
// # Errors
//
// Init failures wrap ErrHardwareFault and stop the service from starting.
// Poll failures are transient; the cycle returns to Idle and tries again
// on the next tick.
package reader
