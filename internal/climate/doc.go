// Package climate bridges the heat-pump controller protocol to a
// poll-driven climate entity.
//
// Two actors share one heatpump.State:
//
//   - Pump runs in the background, driving the protocol's receive/answer
//     cycle and copying the decoded state into the shared buffer.
//   - Controller runs on the caller's schedule. UpdateState reconciles the
//     shared buffer into the abstract State and publishes changes; Control
//     writes requested changes back for the pump to transmit.
//
// Access to the shared buffer is always a bounded try-lock. A caller that
// cannot get the lock in time skips its unit of work (pump, UpdateState) or
// reports ErrLockTimeout (Control); it never blocks the other actor.
package climate
