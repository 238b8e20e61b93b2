package report

import (
	"encoding/json"
	"log"
)

// Publisher is the part of the status bus client the MQTT reporter uses.
type Publisher interface {
	Publish(topic string, payload string)
	Topic(leaf string) string
}

// MQTT publishes events as JSON. Access and suppression events go to the
// node's access topic, everything else to diag.
type MQTT struct {
	pub Publisher
}

// NewMQTT creates an MQTT reporter.
func NewMQTT(pub Publisher) *MQTT {
	return &MQTT{pub: pub}
}

// Report implements Reporter.
func (m *MQTT) Report(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Printf("Encode report event: %v", err)
		return
	}
	m.pub.Publish(m.pub.Topic(topicLeaf(e.Kind)), string(payload))
}

func topicLeaf(k Kind) string {
	switch k {
	case KindAccess, KindSuppressed:
		return "access"
	default:
		return "diag"
	}
}
