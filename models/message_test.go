package models

import (
	"encoding/json"
	"testing"
)

func TestPayloadFillsIconAndBadge(t *testing.T) {
	m := Message{Title: "T", Body: "B"}
	raw, err := m.Payload()
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["icon"] != NotificationIcon || decoded["badge"] != NotificationBadge {
		t.Errorf("Payload missing icon or badge: %s", raw)
	}
	if _, ok := decoded["data"].(map[string]interface{}); !ok {
		t.Errorf("Payload data should default to an empty object: %s", raw)
	}
}
