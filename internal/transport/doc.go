// Package transport opens the byte stream the heat-pump controller bus
// runs over.
//
// Two transports are supported:
//   - a local serial adapter (500 baud, 8E1) via go.bug.st/serial
//   - a remote serial bridge exposed over WebSocket, carrying raw bus
//     bytes in binary messages
//
// Both return a Conn whose Read is bounded by the configured read timeout
// and returns (0, nil) when the bus is quiet, so the protocol layer can
// resynchronise on frame gaps without blocking forever.
package transport
