package records

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It backs local development
// (STORE_BACKEND=memory) and stands in for DynamoDB in tests.
type MemoryStore struct {
	doctors       *memoryProfiles
	patients      *memoryProfiles
	appointments  *memoryAppointments
	prescriptions *memoryPrescriptions
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doctors:       &memoryProfiles{items: make(map[string]Profile)},
		patients:      &memoryProfiles{items: make(map[string]Profile)},
		appointments:  &memoryAppointments{items: make(map[string]Appointment)},
		prescriptions: &memoryPrescriptions{items: make(map[string]Prescription)},
	}
}

func (s *MemoryStore) Doctors() ProfileRepository { return s.doctors }
func (s *MemoryStore) Patients() ProfileRepository { return s.patients }
func (s *MemoryStore) Appointments() AppointmentRepository { return s.appointments }
func (s *MemoryStore) Prescriptions() PrescriptionRepository { return s.prescriptions }

type memoryProfiles struct {
	mu    sync.RWMutex
	items map[string]Profile
}

func (r *memoryProfiles) Create(_ context.Context, profile *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[profile.Email]; ok {
		return ErrAlreadyExists
	}
	r.items[profile.Email] = *profile
	return nil
}

func (r *memoryProfiles) GetByEmail(_ context.Context, email string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	profile, ok := r.items[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &profile, nil
}

func (r *memoryProfiles) Update(_ context.Context, email string, update ProfileUpdate) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile, ok := r.items[email]
	if !ok {
		return nil, ErrNotFound
	}
	profile.Name = update.Name
	profile.Phone = update.Phone
	profile.Gender = update.Gender
	if update.PasswordHash != "" {
		profile.PasswordHash = update.PasswordHash
	}
	profile.UpdatedAt = time.Now().UTC()
	r.items[email] = profile
	return &profile, nil
}

func (r *memoryProfiles) Put(_ context.Context, profile *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[profile.Email] = *profile
	return nil
}

func (r *memoryProfiles) List(_ context.Context) ([]Profile, error) {
	r.mu.RLock()
	out := make([]Profile, 0, len(r.items))
	for _, profile := range r.items {
		out = append(out, profile)
	}
	r.mu.RUnlock()
	sortProfiles(out)
	return out, nil
}

type memoryAppointments struct {
	mu    sync.RWMutex
	items map[string]Appointment
}

func (r *memoryAppointments) Create(_ context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[appt.ID]; ok {
		return ErrAlreadyExists
	}
	r.items[appt.ID] = *appt
	return nil
}

func (r *memoryAppointments) Get(_ context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	appt, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &appt, nil
}

func (r *memoryAppointments) ListByDoctor(_ context.Context, doctorID string) ([]Appointment, error) {
	return r.filter(func(a Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (r *memoryAppointments) ListByPatient(_ context.Context, patientID string) ([]Appointment, error) {
	return r.filter(func(a Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *memoryAppointments) AttachPrescription(_ context.Context, id, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if appt.Prescribed() {
		return ErrConflict
	}
	appt.Prescription = text
	appt.UpdatedAt = time.Now().UTC()
	r.items[id] = appt
	return nil
}

func (r *memoryAppointments) filter(keep func(Appointment) bool) []Appointment {
	r.mu.RLock()
	out := []Appointment{}
	for _, appt := range r.items {
		if keep(appt) {
			out = append(out, appt)
		}
	}
	r.mu.RUnlock()
	sortAppointments(out)
	return out
}

type memoryPrescriptions struct {
	mu    sync.RWMutex
	items map[string]Prescription
}

func (r *memoryPrescriptions) Create(_ context.Context, p *Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[p.ID]; ok {
		return ErrAlreadyExists
	}
	r.items[p.ID] = *p
	return nil
}

func (r *memoryPrescriptions) ListByPatient(_ context.Context, patientID string) ([]Prescription, error) {
	return r.filter(func(p Prescription) bool { return p.PatientID == patientID }), nil
}

func (r *memoryPrescriptions) ListByDoctor(_ context.Context, doctorID string) ([]Prescription, error) {
	return r.filter(func(p Prescription) bool { return p.DoctorID == doctorID }), nil
}

func (r *memoryPrescriptions) filter(keep func(Prescription) bool) []Prescription {
	r.mu.RLock()
	out := []Prescription{}
	for _, p := range r.items {
		if keep(p) {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()
	sortPrescriptions(out)
	return out
}
