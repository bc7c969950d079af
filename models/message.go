package models

import "encoding/json"

// Icon and badge the service worker shows for every notification.
// These paths come from the web client's manifest.
const (
	NotificationIcon  = "/icon-192.svg"
	NotificationBadge = "/icon-192.svg"
)

// Message is one push notification. It is ephemeral and never persisted.
// Data is forwarded to the client unchanged; the service worker uses it
// to deep-link into the app.
type Message struct {
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// Payload encodes the JSON body the service worker expects, with the
// fixed icon and badge filled in.
func (m Message) Payload() ([]byte, error) {
	data := m.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	return json.Marshal(struct {
		Title string                 `json:"title"`
		Body  string                 `json:"body"`
		Icon  string                 `json:"icon"`
		Badge string                 `json:"badge"`
		Data  map[string]interface{} `json:"data"`
	}{m.Title, m.Body, NotificationIcon, NotificationBadge, data})
}
