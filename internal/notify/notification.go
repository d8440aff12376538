package notify

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by publishers missing a required destination.
var ErrNotConfigured = errors.New("notify: publisher not configured")

// Notification is a one-way message about a new booking.
type Notification struct {
	Subject       string `json:"subject"`
	Message       string `json:"message"`
	AppointmentID string `json:"appointment_id"`
	DoctorName    string `json:"doctor"`
	PatientName   string `json:"patient"`
	PatientEmail  string `json:"patient_email,omitempty"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Problem       string `json:"problem"`
}

// Publisher delivers a notification to one sink. Implementations are
// synchronous; callers wanting fire-and-forget go through a Dispatcher.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
	Name() string
}
