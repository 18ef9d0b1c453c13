package mqtt

import "fmt"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "fujibridge"

// Topics provides builders for the bridge's MQTT topics.
//
// All bridge topics use the flat scheme {prefix}/{category}/{protocol}/{id}:
//
//	topics := mqtt.NewTopics("home")
//	topics.BridgeState("fujitsu", "lounge")
//	// Returns: "home/state/fujitsu/lounge"
type Topics struct {
	Prefix string
}

// NewTopics returns topic builders rooted at prefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeState returns the retained state topic for an entity.
//
// Example: fujibridge/state/fujitsu/lounge
func (t Topics) BridgeState(protocol, id string) string {
	return fmt.Sprintf("%s/state/%s/%s", t.prefix(), protocol, id)
}

// BridgeCommand returns the command topic for an entity.
//
// Example: fujibridge/command/fujitsu/lounge
func (t Topics) BridgeCommand(protocol, id string) string {
	return fmt.Sprintf("%s/command/%s/%s", t.prefix(), protocol, id)
}

// BridgeAck returns the command acknowledgement topic for an entity.
//
// Example: fujibridge/ack/fujitsu/lounge
func (t Topics) BridgeAck(protocol, id string) string {
	return fmt.Sprintf("%s/ack/%s/%s", t.prefix(), protocol, id)
}

// BridgeRequest returns the request topic.
//
// Example: fujibridge/request/fujitsu/req-abc123
func (t Topics) BridgeRequest(protocol, requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", t.prefix(), protocol, requestID)
}

// BridgeResponse returns the response topic for a request.
//
// Example: fujibridge/response/fujitsu/req-abc123
func (t Topics) BridgeResponse(protocol, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", t.prefix(), protocol, requestID)
}

// BridgeHealth returns the retained health topic for a bridge instance.
//
// Example: fujibridge/health/fujitsu/lounge
func (t Topics) BridgeHealth(protocol, id string) string {
	return fmt.Sprintf("%s/health/%s/%s", t.prefix(), protocol, id)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the client online/offline topic.
//
// Example: fujibridge/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllBridgeCommands returns a pattern matching every command for a protocol.
//
// Pattern: fujibridge/command/fujitsu/#
func (t Topics) AllBridgeCommands(protocol string) string {
	return fmt.Sprintf("%s/command/%s/#", t.prefix(), protocol)
}

// AllBridgeRequests returns a pattern matching every request for a protocol.
//
// Pattern: fujibridge/request/fujitsu/#
func (t Topics) AllBridgeRequests(protocol string) string {
	return fmt.Sprintf("%s/request/%s/#", t.prefix(), protocol)
}
