// Package events defines the simulation events emitted on the event bus.
//
// Available event types:
//   - RoundEvent: one Monte Carlo round finished
//   - RunEvent: a run started, completed or failed
package events
