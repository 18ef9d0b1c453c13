// Package fujitsu exposes a Fujitsu heat pump as a climate entity over MQTT.
//
// The bridge owns the climate controller for one indoor unit. It drives the
// reconciliation tick, publishes every changed state, and turns MQTT
// commands into control requests:
//
//	┌─────────────────┐          ┌─────────────────┐   controller bus
//	│  Home / client  │   MQTT   │  Fujitsu bridge │◄──────────────────► Indoor unit
//	│                 │◄────────►│   (this pkg)    │   (serial / ws)
//	└─────────────────┘          └─────────────────┘
//
// # Topics
//
// With prefix "fujibridge" and bridge ID "lounge":
//
//	fujibridge/state/fujitsu/lounge        retained StateMessage
//	fujibridge/command/fujitsu/lounge      CommandMessage (in)
//	fujibridge/ack/fujitsu/lounge          AckMessage
//	fujibridge/request/fujitsu/{id}        RequestMessage (in)
//	fujibridge/response/fujitsu/{id}       ResponseMessage
//	fujibridge/health/fujitsu/lounge       retained HealthMessage, also the LWT
//
// # Observers
//
// Other components (API push hub, history recorder, telemetry) register a
// StateObserver and receive each published state plus each accepted
// control request.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use.
package fujitsu
