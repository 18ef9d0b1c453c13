// Package mqtt provides MQTT client connectivity for the bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
// Every topic lives under the configured prefix (mqtt.topic_prefix):
//
//	{prefix}/state/fujitsu/{bridge_id}      retained climate state
//	{prefix}/command/fujitsu/{bridge_id}    inbound commands
//	{prefix}/ack/fujitsu/{bridge_id}        command acknowledgements
//	{prefix}/request/fujitsu/{request_id}   inbound requests
//	{prefix}/response/fujitsu/{request_id}  request responses
//	{prefix}/health/fujitsu/{bridge_id}     retained health, LWT
//	{prefix}/system/status                  client online/offline
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().BridgeState("fujitsu", cfg.Bridge.ID)
//	err = client.Publish(topic, payload, 1, true)
package mqtt
