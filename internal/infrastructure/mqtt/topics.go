package mqtt

import "strings"

// Topic namespace for the relay's MQTT surface.
//
//	simrelay/system/status              retained relay online/offline status
//	simrelay/command/broadcast          commands for every connected device
//	simrelay/command/<connectionKey>    commands for one connected device
const (
	topicPrefix = "simrelay"

	topicSystem  = "system"
	topicCommand = "command"

	// BroadcastKey is the pseudo connection key addressing all devices.
	BroadcastKey = "broadcast"
)

// Topics builds relay topic strings. The zero value is ready to use.
type Topics struct{}

// SystemStatus returns the retained status topic.
func (Topics) SystemStatus() string {
	return join(topicPrefix, topicSystem, "status")
}

// CommandBroadcast returns the topic carrying commands for all devices.
func (Topics) CommandBroadcast() string {
	return join(topicPrefix, topicCommand, BroadcastKey)
}

// Command returns the topic carrying commands for one connection key.
func (Topics) Command(connectionKey string) string {
	return join(topicPrefix, topicCommand, connectionKey)
}

// AllCommands returns the wildcard subscription covering every command
// topic, broadcast included.
func (Topics) AllCommands() string {
	return join(topicPrefix, topicCommand, "+")
}

// CommandKey extracts the connection key from a command topic. Returns
// ("", false) when topic is not a command topic.
func (Topics) CommandKey(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != topicPrefix || parts[1] != topicCommand || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

func join(parts ...string) string {
	return strings.Join(parts, "/")
}
