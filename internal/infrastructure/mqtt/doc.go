// Package mqtt wraps paho.mqtt.golang for the optional command bridge.
//
// The wrapper owns connection management, automatic reconnection with
// subscription restoration, panic-safe message handlers, and the
// relay's retained online/offline status on the system topic. Topic
// construction lives in topics.go so the bridge and tests agree on the
// namespace.
//
// The bridge is opt-in: when mqtt is disabled in config the package is
// never initialised and the relay runs HTTP/WebSocket only.
package mqtt
