// Package notification delivers lifecycle events to connected clients and
// text messages to patients. Delivery is best-effort and at-most-once: a
// recipient that is not connected misses the event, and failures never reach
// the operation that triggered them.
package notification

import (
	"fmt"
	"time"
)

// Sink receives events produced by the encounter lifecycle
type Sink interface {
	NotifyUser(userID uint, event string, payload any)
	NotifyTopic(topic string, event string, payload any)
}

const (
	EventNewAppointment  = "new_appointment"
	EventNewPrescription = "new_prescription"
	EventDispenseUpdate  = "dispense_update"

	// TopicPharmacyQueue is the shared room every pharmacy client joins
	TopicPharmacyQueue = "pharmacy_queue"
)

// UserRoom names the private room of a user
func UserRoom(userID uint) string {
	return fmt.Sprintf("user_%d", userID)
}

// Frame is what a websocket client receives
type Frame struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}
