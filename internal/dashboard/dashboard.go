// Package dashboard derives the role-specific views over appointments and
// prescriptions. Lists come back in creation order and are truncated to
// PageSize unless the caller asks for the full list; counts always describe
// the untruncated list.
package dashboard

import (
	"context"
	"fmt"

	"github.com/wolfman30/medtrack/internal/accounts"
	"github.com/wolfman30/medtrack/internal/records"
	"github.com/wolfman30/medtrack/pkg/logging"
)

// PageSize is the number of entries shown per list when not expanded.
const PageSize = 3

// Page is a possibly truncated list with the size of the full list.
type Page[T any] struct {
	Items   []T
	Count   int
	More    bool
	ShowAll bool
}

// NewPage truncates items to PageSize unless showAll is set.
func NewPage[T any](items []T, showAll bool) Page[T] {
	p := Page[T]{Count: len(items), More: len(items) > PageSize, ShowAll: showAll}
	p.Items = items
	if !showAll {
		p.Items = firstN(items, PageSize)
	}
	if p.Items == nil {
		p.Items = []T{}
	}
	return p
}

func firstN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

// DoctorOptions are the doctor dashboard's query flags.
type DoctorOptions struct {
	WriteMode           bool
	ShowAll             bool
	PrescriptionSuccess bool
}

// DoctorView is the doctor dashboard. Upcoming and Completed follow ShowAll;
// the Pending, Done and Recent previews are always at most PageSize long.
type DoctorView struct {
	Name        string
	Upcoming    Page[records.Appointment]
	Completed   Page[records.Appointment]
	Pending     []records.Appointment
	Done        []records.Appointment
	Recent      []records.Appointment
	PatientList []string

	PendingCount   int
	CompletedCount int
	TotalCount     int

	WriteMode           bool
	PrescriptionSuccess bool
}

// PatientOptions are the patient dashboard's query flags. ShowAll names the one
// list to expand: upcoming, completed or prescriptions.
type PatientOptions struct {
	ShowAll             string
	PrescriptionSuccess bool
}

const (
	ShowUpcoming      = "upcoming"
	ShowCompleted     = "completed"
	ShowPrescriptions = "prescriptions"
)

type PatientView struct {
	Name                string
	Upcoming            Page[records.Appointment]
	Completed           Page[records.Appointment]
	Prescriptions       Page[records.Prescription]
	PrescriptionSuccess bool
}

// PatientEntry is one row of the doctor's accepted-patients view.
type PatientEntry struct {
	PatientID string
	Name      string
	Email     string
}

type Service struct {
	store  records.Store
	logger *logging.Logger
}

func NewService(store records.Store, logger *logging.Logger) *Service {
	if store == nil {
		panic("dashboard: record store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, logger: logger}
}

// Doctor builds the dashboard for the signed-in doctor.
func (s *Service) Doctor(ctx context.Context, id accounts.Identity, opts DoctorOptions) (*DoctorView, error) {
	appts, err := s.store.Appointments().ListByDoctor(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: list doctor appointments: %w", err)
	}

	var upcoming, completed []records.Appointment
	patients := []string{}
	for _, a := range appts {
		if a.Prescribed() {
			completed = append(completed, a)
			continue
		}
		upcoming = append(upcoming, a)
		patients = append(patients, a.PatientName)
	}

	all := make([]records.Appointment, 0, len(upcoming)+len(completed))
	all = append(all, upcoming...)
	all = append(all, completed...)

	return &DoctorView{
		Name:                id.Name,
		Upcoming:            NewPage(upcoming, opts.ShowAll),
		Completed:           NewPage(completed, opts.ShowAll),
		Pending:             firstN(upcoming, PageSize),
		Done:                firstN(completed, PageSize),
		Recent:              firstN(all, PageSize),
		PatientList:         patients,
		PendingCount:        len(upcoming),
		CompletedCount:      len(completed),
		TotalCount:          len(appts),
		WriteMode:           opts.WriteMode,
		PrescriptionSuccess: opts.PrescriptionSuccess,
	}, nil
}

// AcceptedPatients lists each patient holding an accepted appointment with the
// doctor once, in order of their first such appointment.
func (s *Service) AcceptedPatients(ctx context.Context, id accounts.Identity) ([]PatientEntry, error) {
	appts, err := s.store.Appointments().ListByDoctor(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: list doctor appointments: %w", err)
	}
	seen := make(map[string]struct{})
	out := []PatientEntry{}
	for _, a := range appts {
		if a.Status != records.StatusAccepted {
			continue
		}
		if _, ok := seen[a.PatientID]; ok {
			continue
		}
		seen[a.PatientID] = struct{}{}
		out = append(out, PatientEntry{PatientID: a.PatientID, Name: a.PatientName, Email: a.PatientEmail})
	}
	return out, nil
}

// Patient builds the dashboard for the signed-in patient.
func (s *Service) Patient(ctx context.Context, id accounts.Identity, opts PatientOptions) (*PatientView, error) {
	appts, err := s.store.Appointments().ListByPatient(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: list patient appointments: %w", err)
	}
	prescriptions, err := s.store.Prescriptions().ListByPatient(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: list patient prescriptions: %w", err)
	}

	var upcoming, completed []records.Appointment
	for _, a := range appts {
		switch {
		case a.Prescribed():
			completed = append(completed, a)
		case a.Status == records.StatusAccepted:
			upcoming = append(upcoming, a)
		}
	}

	return &PatientView{
		Name:                id.Name,
		Upcoming:            NewPage(upcoming, opts.ShowAll == ShowUpcoming),
		Completed:           NewPage(completed, opts.ShowAll == ShowCompleted),
		Prescriptions:       NewPage(prescriptions, opts.ShowAll == ShowPrescriptions),
		PrescriptionSuccess: opts.PrescriptionSuccess,
	}, nil
}
