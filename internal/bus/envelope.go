// Package bus is the publish/subscribe event bus: a single named Redis
// channel carrying already-committed events between service instances.
package bus

import "encoding/json"

// Envelope is the wire shape carried on the bus channel:
// {"event": <string>, "data": <object>}.
type Envelope struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

func Marshal(eventType string, data map[string]interface{}) ([]byte, error) {
	return json.Marshal(Envelope{Event: eventType, Data: data})
}

func Unmarshal(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
