package mqtt

import "testing"

func TestTopics(t *testing.T) {
	topics := Topics{}

	if got := topics.SystemStatus(); got != "simrelay/system/status" {
		t.Errorf("SystemStatus() = %q", got)
	}
	if got := topics.CommandBroadcast(); got != "simrelay/command/broadcast" {
		t.Errorf("CommandBroadcast() = %q", got)
	}
	if got := topics.Command("abc-123"); got != "simrelay/command/abc-123" {
		t.Errorf("Command() = %q", got)
	}
	if got := topics.AllCommands(); got != "simrelay/command/+" {
		t.Errorf("AllCommands() = %q", got)
	}
}

func TestTopics_CommandKey(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		wantKey string
		wantOK  bool
	}{
		{"broadcast", "simrelay/command/broadcast", "broadcast", true},
		{"targeted", "simrelay/command/abc-123", "abc-123", true},
		{"status topic", "simrelay/system/status", "", false},
		{"wrong prefix", "other/command/abc", "", false},
		{"missing key", "simrelay/command/", "", false},
		{"extra segment", "simrelay/command/a/b", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := Topics{}.CommandKey(tt.topic)
			if key != tt.wantKey || ok != tt.wantOK {
				t.Errorf("CommandKey(%q) = (%q, %v), want (%q, %v)",
					tt.topic, key, ok, tt.wantKey, tt.wantOK)
			}
		})
	}
}
