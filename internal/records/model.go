// Package records holds the clinic's persisted entities and the persistence
// port used by the rest of the application.
package records

import (
	"sort"
	"strings"
	"time"
)

// Role identifies which profile table an identity lives in.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// ParseRole normalizes a submitted role value.
func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleDoctor:
		return RoleDoctor, true
	case RolePatient:
		return RolePatient, true
	default:
		return "", false
	}
}

// AppointmentStatus is the booking status of an appointment. Bookings are
// accepted immediately, so accepted is the only value ever written.
type AppointmentStatus string

const StatusAccepted AppointmentStatus = "accepted"

// Profile is a doctor or patient record, keyed by email within its role table.
type Profile struct {
	ID           string    `dynamodbav:"id" json:"id"`
	Email        string    `dynamodbav:"email" json:"email"`
	Name         string    `dynamodbav:"name" json:"name"`
	Phone        string    `dynamodbav:"phone" json:"phone"`
	Gender       string    `dynamodbav:"gender" json:"gender"`
	PasswordHash string    `dynamodbav:"password" json:"-"`
	Role         Role      `dynamodbav:"role" json:"role"`
	CreatedAt    time.Time `dynamodbav:"createdAt" json:"created_at"`
	UpdatedAt    time.Time `dynamodbav:"updatedAt" json:"updated_at"`
}

// ProfileUpdate carries the fields a doctor may change in place.
// An empty PasswordHash leaves the stored hash untouched.
type ProfileUpdate struct {
	Name         string
	Phone        string
	Gender       string
	PasswordHash string
}

// Appointment is a booking between a patient and a doctor. DoctorName and
// PatientName are display snapshots taken at booking time; correlation always
// uses the ids.
type Appointment struct {
	ID           string            `dynamodbav:"id" json:"id"`
	PatientID    string            `dynamodbav:"patientId" json:"patient_id"`
	PatientName  string            `dynamodbav:"patient" json:"patient"`
	PatientEmail string            `dynamodbav:"patientEmail,omitempty" json:"patient_email,omitempty"`
	DoctorID     string            `dynamodbav:"doctorId" json:"doctor_id"`
	DoctorName   string            `dynamodbav:"doctor" json:"doctor"`
	Date         string            `dynamodbav:"date" json:"date"`
	Time         string            `dynamodbav:"time" json:"time"`
	Problem      string            `dynamodbav:"problem" json:"problem"`
	Status       AppointmentStatus `dynamodbav:"status" json:"status"`
	Prescription string            `dynamodbav:"prescription" json:"prescription"`
	CreatedAt    time.Time         `dynamodbav:"createdAt" json:"created_at"`
	UpdatedAt    time.Time         `dynamodbav:"updatedAt" json:"updated_at"`
}

// Prescribed reports whether a prescription has been attached.
func (a Appointment) Prescribed() bool {
	return a.Prescription != ""
}

// Prescription is free-text treatment written by a doctor for a patient.
// AppointmentID is empty when no open appointment matched at submission.
type Prescription struct {
	ID            string    `dynamodbav:"id" json:"id"`
	AppointmentID string    `dynamodbav:"appointmentId,omitempty" json:"appointment_id,omitempty"`
	DoctorID      string    `dynamodbav:"doctorId" json:"doctor_id"`
	DoctorName    string    `dynamodbav:"doctor" json:"doctor"`
	PatientID     string    `dynamodbav:"patientId" json:"patient_id"`
	PatientName   string    `dynamodbav:"patient" json:"patient"`
	Text          string    `dynamodbav:"prescription" json:"prescription"`
	CreatedAt     time.Time `dynamodbav:"createdAt" json:"created_at"`
}

// Linked reports whether the prescription was attached to an appointment.
func (p Prescription) Linked() bool {
	return p.AppointmentID != ""
}

// Every list the store returns is ordered by creation time, oldest first,
// with the id as tiebreaker so equal timestamps still sort deterministically.

func sortAppointments(items []Appointment) {
	sort.SliceStable(items, func(i, j int) bool {
		return createdBefore(items[i].CreatedAt, items[i].ID, items[j].CreatedAt, items[j].ID)
	})
}

func sortPrescriptions(items []Prescription) {
	sort.SliceStable(items, func(i, j int) bool {
		return createdBefore(items[i].CreatedAt, items[i].ID, items[j].CreatedAt, items[j].ID)
	})
}

func sortProfiles(items []Profile) {
	sort.SliceStable(items, func(i, j int) bool {
		return createdBefore(items[i].CreatedAt, items[i].ID, items[j].CreatedAt, items[j].ID)
	})
}

func createdBefore(a time.Time, aID string, b time.Time, bID string) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return aID < bID
}
