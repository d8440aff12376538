// Package appointments implements the booking and prescription workflow.
// An appointment is created accepted with no prescription and moves once,
// to prescribed, when its doctor submits a prescription for the patient.
package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/medtrack/internal/accounts"
	"github.com/wolfman30/medtrack/internal/notify"
	"github.com/wolfman30/medtrack/internal/observability/metrics"
	"github.com/wolfman30/medtrack/internal/records"
	"github.com/wolfman30/medtrack/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("medtrack.internal.appointments")

var (
	ErrUnknownDoctor     = errors.New("appointments: doctor not found")
	ErrMissingPatient    = errors.New("appointments: patient identity required")
	ErrMissingDoctor     = errors.New("appointments: doctor identity required")
	ErrEmptyPrescription = errors.New("appointments: prescription text is empty")
)

// NotificationSubject is the subject line of every booking notification.
const NotificationSubject = "New Appointment"

// Notifier receives booking notifications. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification)
}

// BookingRequest is a patient's submitted booking form.
type BookingRequest struct {
	Patient     accounts.Identity
	DoctorEmail string
	Date        string
	Time        string
	Problem     string
}

// PrescriptionRequest is a doctor's submitted prescription for one patient.
// PatientName is used only when the doctor has no appointment with the patient
// to take the display name from.
type PrescriptionRequest struct {
	Doctor      accounts.Identity
	PatientID   string
	PatientName string
	Text        string
}

// PrescriptionResult reports the stored prescription and the appointment it
// was attached to, if any.
type PrescriptionResult struct {
	Prescription records.Prescription
	Appointment  *records.Appointment
}

// Linked reports whether an appointment received the prescription.
func (r *PrescriptionResult) Linked() bool {
	return r != nil && r.Appointment != nil
}

type Service struct {
	store    records.Store
	notifier Notifier
	metrics  *metrics.ClinicMetrics
	logger   *logging.Logger
	now      func() time.Time
	newID    func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates the workflow service. A nil notifier disables booking
// notifications.
func NewService(store records.Store, notifier Notifier, m *metrics.ClinicMetrics, logger *logging.Logger, opts ...Option) *Service {
	if store == nil {
		panic("appointments: record store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:    store,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book creates an accepted appointment with the selected doctor and hands a
// notification to the notifier once the record is stored.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*records.Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.book", trace.WithAttributes(
		attribute.String("medtrack.patient_id", req.Patient.UserID),
	))
	defer span.End()

	if req.Patient.UserID == "" || req.Patient.Role != records.RolePatient {
		s.metrics.ObserveBooking("invalid")
		return nil, ErrMissingPatient
	}

	doctor, err := s.store.Doctors().GetByEmail(ctx, strings.TrimSpace(req.DoctorEmail))
	if errors.Is(err, records.ErrNotFound) {
		s.metrics.ObserveBooking("unknown_doctor")
		return nil, ErrUnknownDoctor
	}
	if err != nil {
		s.metrics.ObserveBooking("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "doctor lookup failed")
		return nil, fmt.Errorf("appointments: load doctor: %w", err)
	}

	now := s.now()
	appt := &records.Appointment{
		ID:           s.newID(),
		PatientID:    req.Patient.UserID,
		PatientName:  req.Patient.Name,
		PatientEmail: req.Patient.Email,
		DoctorID:     doctor.ID,
		DoctorName:   doctor.Name,
		Date:         req.Date,
		Time:         req.Time,
		Problem:      req.Problem,
		Status:       records.StatusAccepted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	span.SetAttributes(attribute.String("medtrack.appointment_id", appt.ID), attribute.String("medtrack.doctor_id", doctor.ID))

	if err := s.store.Appointments().Create(ctx, appt); err != nil {
		s.metrics.ObserveBooking("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "create appointment failed")
		return nil, fmt.Errorf("appointments: create appointment: %w", err)
	}
	s.metrics.ObserveBooking("success")
	s.logger.Info("appointment booked", "appointment_id", appt.ID, "doctor_id", appt.DoctorID, "patient_id", appt.PatientID)

	if s.notifier != nil {
		s.notifier.Notify(ctx, BookingNotification(*appt))
	}
	return appt, nil
}

// SubmitPrescription stores a prescription from the doctor for the patient and
// attaches its text to the earliest accepted, unprescribed appointment between
// them. When no appointment qualifies the prescription is still stored, unlinked,
// and no appointment is touched.
func (s *Service) SubmitPrescription(ctx context.Context, req PrescriptionRequest) (*PrescriptionResult, error) {
	ctx, span := tracer.Start(ctx, "appointments.submit_prescription", trace.WithAttributes(
		attribute.String("medtrack.doctor_id", req.Doctor.UserID),
		attribute.String("medtrack.patient_id", req.PatientID),
	))
	defer span.End()

	if req.Doctor.UserID == "" || req.Doctor.Role != records.RoleDoctor {
		return nil, ErrMissingDoctor
	}
	req.PatientID = strings.TrimSpace(req.PatientID)
	if req.PatientID == "" {
		return nil, ErrMissingPatient
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyPrescription
	}

	appts, err := s.store.Appointments().ListByDoctor(ctx, req.Doctor.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list appointments failed")
		return nil, fmt.Errorf("appointments: list doctor appointments: %w", err)
	}

	patientName := req.PatientName
	var linked *records.Appointment
	for i := range appts {
		appt := appts[i]
		if appt.PatientID != req.PatientID {
			continue
		}
		if patientName == "" {
			patientName = appt.PatientName
		}
		if linked != nil || appt.Status != records.StatusAccepted || appt.Prescribed() {
			continue
		}
		err := s.store.Appointments().AttachPrescription(ctx, appt.ID, text)
		if errors.Is(err, records.ErrConflict) {
			// Prescribed concurrently; try the next candidate.
			s.logger.Debug("appointment already prescribed", "appointment_id", appt.ID)
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "attach prescription failed")
			return nil, fmt.Errorf("appointments: attach prescription: %w", err)
		}
		appt.Prescription = text
		appt.UpdatedAt = s.now()
		linked = &appt
	}

	p := records.Prescription{
		ID:          s.newID(),
		DoctorID:    req.Doctor.UserID,
		DoctorName:  req.Doctor.Name,
		PatientID:   req.PatientID,
		PatientName: patientName,
		Text:        text,
		CreatedAt:   s.now(),
	}
	if linked != nil {
		p.AppointmentID = linked.ID
	}
	if err := s.store.Prescriptions().Create(ctx, &p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create prescription failed")
		return nil, fmt.Errorf("appointments: create prescription: %w", err)
	}

	s.metrics.ObservePrescription(linked != nil)
	span.SetAttributes(attribute.Bool("medtrack.prescription_linked", linked != nil))
	if linked == nil {
		s.logger.Info("prescription stored without matching appointment", "prescription_id", p.ID, "doctor_id", p.DoctorID, "patient_id", p.PatientID)
	} else {
		s.logger.Info("prescription attached", "prescription_id", p.ID, "appointment_id", linked.ID)
	}
	return &PrescriptionResult{Prescription: p, Appointment: linked}, nil
}

// BookingNotification renders the notification for a stored appointment.
func BookingNotification(appt records.Appointment) notify.Notification {
	return notify.Notification{
		Subject: NotificationSubject,
		Message: fmt.Sprintf("New appointment booked with %s by %s on %s at %s. Problem: %s",
			doctorTitle(appt.DoctorName), appt.PatientName, appt.Date, appt.Time, appt.Problem),
		AppointmentID: appt.ID,
		DoctorName:    appt.DoctorName,
		PatientName:   appt.PatientName,
		PatientEmail:  appt.PatientEmail,
		Date:          appt.Date,
		Time:          appt.Time,
		Problem:       appt.Problem,
	}
}

func doctorTitle(name string) string {
	if strings.HasPrefix(name, "Dr") {
		return name
	}
	return "Dr. " + name
}
