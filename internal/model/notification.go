package model

// Notification templates sent by the core
const (
	TemplateAppointmentConfirmed   = "appointment_confirmed"
	TemplateAppointmentRescheduled = "appointment_rescheduled"
	TemplateAppointmentCancelled   = "appointment_cancelled"
	TemplatePatientInvite          = "patient_invite"
)

// NotificationEventType is the outbox event type carrying notification intents
const NotificationEventType = "notification.requested"

// NotificationMessage is the payload that travels outbox -> broker -> mailer
type NotificationMessage struct {
	Template  string                 `json:"template"`
	Recipient string                 `json:"recipient"`
	Vars      map[string]interface{} `json:"vars,omitempty"`
}
