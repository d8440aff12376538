package records

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("records: not found")
	// ErrAlreadyExists indicates a create collided with an existing key.
	ErrAlreadyExists = errors.New("records: already exists")
	// ErrConflict indicates a conditional update lost to the current state,
	// e.g. the appointment already carries a prescription.
	ErrConflict = errors.New("records: conflict")
)

// ProfileRepository persists doctors or patients keyed by email.
type ProfileRepository interface {
	Create(ctx context.Context, profile *Profile) error
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	Update(ctx context.Context, email string, update ProfileUpdate) (*Profile, error)
	Put(ctx context.Context, profile *Profile) error
	List(ctx context.Context) ([]Profile, error)
}

// AppointmentRepository persists appointments keyed by generated id.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]Appointment, error)
	// AttachPrescription sets the prescription text on an appointment that has
	// none yet. It returns ErrConflict when one is already attached.
	AttachPrescription(ctx context.Context, id, text string) error
}

// PrescriptionRepository persists prescriptions keyed by generated id.
type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	ListByPatient(ctx context.Context, patientID string) ([]Prescription, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]Prescription, error)
}

// Store is the persistence port handed to services and handlers.
type Store interface {
	Doctors() ProfileRepository
	Patients() ProfileRepository
	Appointments() AppointmentRepository
	Prescriptions() PrescriptionRepository
}

// Profiles returns the repository for the given role.
func Profiles(s Store, role Role) (ProfileRepository, bool) {
	switch role {
	case RoleDoctor:
		return s.Doctors(), true
	case RolePatient:
		return s.Patients(), true
	default:
		return nil, false
	}
}
