// Package heatpump speaks the Fujitsu indoor-unit controller bus.
//
// The indoor unit is the bus master. It sends a fixed 8-byte frame to each
// controller address in turn and expects an answer inside a short window.
// Every byte is inverted on the wire. A controller answers with its view of
// the unit state and sets the write flag when it wants the unit to change
// something.
//
// # Usage
//
//	hp := heatpump.New()
//	hp.Connect(port, false)
//	for {
//	    if hp.WaitForFrame() {
//	        time.Sleep(60 * time.Millisecond)
//	        hp.SendPendingFrame()
//	    }
//	    state := hp.CurrentState()
//	    ...
//	}
//
// The settle delay between receiving and answering is a bus timing
// requirement; callers own it so it can be configured.
package heatpump
