// Package web serves the clinic's HTML pages.
package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/wolfman30/medtrack/internal/accounts"
	"github.com/wolfman30/medtrack/internal/appointments"
	"github.com/wolfman30/medtrack/internal/dashboard"
	"github.com/wolfman30/medtrack/internal/records"
	"github.com/wolfman30/medtrack/internal/session"
	"github.com/wolfman30/medtrack/pkg/logging"
)

// Flash messages shown after redirects.
const (
	FlashDuplicateEmail     = "Email already registered."
	FlashInvalidCredentials = "Invalid credentials."
	FlashLoggedOut          = "You have been logged out."
	FlashDoctorProfileSaved = "Profile updated successfully."
	FlashPatientProfileSave = "Profile updated."
	FlashChooseRole         = "Please choose doctor or patient."
	FlashUnknownDoctor      = "Please choose a doctor from the list."
	FlashEmptyPrescription  = "Prescription cannot be empty."
	FlashChoosePatient      = "Please choose a patient."
	FlashPasswordRequired   = "Please enter a password to restore your profile."
)

// AccountService is the subset of accounts.Service the pages use.
type AccountService interface {
	Signup(ctx context.Context, req accounts.SignupRequest) (accounts.Identity, error)
	Login(ctx context.Context, role, email, password string) (accounts.Identity, error)
	Profile(ctx context.Context, id accounts.Identity) (*records.Profile, error)
	UpdateDoctorProfile(ctx context.Context, id accounts.Identity, form accounts.ProfileForm) (accounts.Identity, error)
	OverwritePatientProfile(ctx context.Context, id accounts.Identity, form accounts.ProfileForm) (accounts.Identity, error)
	ListDoctors(ctx context.Context) ([]records.Profile, error)
}

// WorkflowService books appointments and records prescriptions.
type WorkflowService interface {
	Book(ctx context.Context, req appointments.BookingRequest) (*records.Appointment, error)
	SubmitPrescription(ctx context.Context, req appointments.PrescriptionRequest) (*appointments.PrescriptionResult, error)
}

// DashboardService builds the dashboards.
type DashboardService interface {
	Doctor(ctx context.Context, id accounts.Identity, opts dashboard.DoctorOptions) (*dashboard.DoctorView, error)
	AcceptedPatients(ctx context.Context, id accounts.Identity) ([]dashboard.PatientEntry, error)
	Patient(ctx context.Context, id accounts.Identity, opts dashboard.PatientOptions) (*dashboard.PatientView, error)
}

// Handler serves every page. Role checks happen in the router; handlers
// assume the session identity matches the route's role.
type Handler struct {
	accounts     AccountService
	appointments WorkflowService
	dashboards   DashboardService
	sessions     *session.Manager
	logger       *logging.Logger
	pages        map[string]*template.Template
}

// NewHandler parses the embedded templates and returns the page handler.
func NewHandler(acc AccountService, wf WorkflowService, dash DashboardService, sessions *session.Manager, logger *logging.Logger) (*Handler, error) {
	if acc == nil || wf == nil || dash == nil || sessions == nil {
		return nil, errors.New("web: services and session manager are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Handler{
		accounts:     acc,
		appointments: wf,
		dashboards:   dash,
		sessions:     sessions,
		logger:       logger,
		pages:        pages,
	}, nil
}

func dashboardPath(role records.Role) string {
	if role == records.RoleDoctor {
		return "/doctor_dashboard"
	}
	return "/patient_dashboard"
}

func currentIdentity(r *http.Request) accounts.Identity {
	id, _ := session.FromContext(r.Context()).Identity()
	return id
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "index.html", "Home", nil)
}

func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "contact.html", "Contact", nil)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) SignupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signup.html", "Sign up", nil)
}

// Signup creates the account and signs the new user in.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	sess := session.FromContext(r.Context())

	id, err := h.accounts.Signup(r.Context(), accounts.SignupRequest{
		Role:     r.PostFormValue("role"),
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Phone:    r.PostFormValue("phone"),
		Gender:   r.PostFormValue("gender"),
		Password: r.PostFormValue("password"),
	})
	switch {
	case errors.Is(err, accounts.ErrDuplicateIdentity):
		sess.AddFlash(FlashDuplicateEmail)
		h.redirect(w, r, "/signup")
		return
	case errors.Is(err, accounts.ErrInvalidRole):
		sess.AddFlash(FlashChooseRole)
		h.redirect(w, r, "/signup")
		return
	case err != nil:
		h.serverError(w, r, err)
		return
	}

	sess.SignIn(id)
	h.redirect(w, r, dashboardPath(id.Role))
}

func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login.html", "Log in", nil)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	sess := session.FromContext(r.Context())

	id, err := h.accounts.Login(r.Context(), r.PostFormValue("role"), r.PostFormValue("email"), r.PostFormValue("password"))
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		sess.AddFlash(FlashInvalidCredentials)
		h.redirect(w, r, "/login")
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	sess.SignIn(id)
	h.redirect(w, r, dashboardPath(id.Role))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	sess.Clear()
	sess.AddFlash(FlashLoggedOut)
	h.redirect(w, r, "/")
}

type doctorDashboardData struct {
	View     *dashboard.DoctorView
	Patients []dashboard.PatientEntry
}

func (h *Handler) DoctorDashboard(w http.ResponseWriter, r *http.Request) {
	id := currentIdentity(r)
	q := r.URL.Query()
	opts := dashboard.DoctorOptions{
		WriteMode:           q.Get("write_mode") == "yes",
		ShowAll:             q.Get("show_all") == "yes",
		PrescriptionSuccess: q.Get("prescription_success") == "yes",
	}

	view, err := h.dashboards.Doctor(r.Context(), id, opts)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	data := doctorDashboardData{View: view}
	if opts.WriteMode {
		data.Patients, err = h.dashboards.AcceptedPatients(r.Context(), id)
		if err != nil {
			h.serverError(w, r, err)
			return
		}
	}
	h.render(w, r, http.StatusOK, "doctor_dashboard.html", "Doctor dashboard", data)
}

func (h *Handler) DoctorViewPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.dashboards.AcceptedPatients(r.Context(), currentIdentity(r))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "doctor_view_patients.html", "Patients", struct {
		Patients []dashboard.PatientEntry
	}{patients})
}

// SubmitPrescription records the doctor's prescription for the selected patient.
func (h *Handler) SubmitPrescription(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	_, err := h.appointments.SubmitPrescription(r.Context(), appointments.PrescriptionRequest{
		Doctor:      currentIdentity(r),
		PatientID:   strings.TrimSpace(r.PostFormValue("patient")),
		PatientName: r.PostFormValue("patient_name"),
		Text:        r.PostFormValue("prescription"),
	})
	switch {
	case errors.Is(err, appointments.ErrMissingPatient):
		session.FromContext(r.Context()).AddFlash(FlashChoosePatient)
		h.redirect(w, r, "/doctor_dashboard?write_mode=yes")
		return
	case errors.Is(err, appointments.ErrEmptyPrescription):
		session.FromContext(r.Context()).AddFlash(FlashEmptyPrescription)
		h.redirect(w, r, "/doctor_dashboard?write_mode=yes")
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.redirect(w, r, "/doctor_dashboard?prescription_success=yes")
}

type profileData struct {
	Action  string
	Profile *records.Profile
}

func (h *Handler) DoctorProfile(w http.ResponseWriter, r *http.Request) {
	h.showProfile(w, r, "/doctor_profile")
}

func (h *Handler) UpdateDoctorProfile(w http.ResponseWriter, r *http.Request) {
	h.saveProfile(w, r, "/doctor_profile", FlashDoctorProfileSaved, h.accounts.UpdateDoctorProfile)
}

func (h *Handler) PatientProfile(w http.ResponseWriter, r *http.Request) {
	h.showProfile(w, r, "/patient_profile")
}

func (h *Handler) UpdatePatientProfile(w http.ResponseWriter, r *http.Request) {
	h.saveProfile(w, r, "/patient_profile", FlashPatientProfileSave, h.accounts.OverwritePatientProfile)
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request, action string) {
	profile, err := h.accounts.Profile(r.Context(), currentIdentity(r))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "profile.html", "Profile", profileData{Action: action, Profile: profile})
}

type profileSaver func(context.Context, accounts.Identity, accounts.ProfileForm) (accounts.Identity, error)

func (h *Handler) saveProfile(w http.ResponseWriter, r *http.Request, back, flash string, save profileSaver) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	updated, err := save(r.Context(), currentIdentity(r), accounts.ProfileForm{
		Name:     r.PostFormValue("name"),
		Phone:    r.PostFormValue("phone"),
		Gender:   r.PostFormValue("gender"),
		Password: r.PostFormValue("password"),
	})
	sess := session.FromContext(r.Context())
	if errors.Is(err, accounts.ErrPasswordRequired) {
		sess.AddFlash(FlashPasswordRequired)
		h.redirect(w, r, back)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	sess.Refresh(updated)
	sess.AddFlash(flash)
	h.redirect(w, r, back)
}

func (h *Handler) PatientDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := h.dashboards.Patient(r.Context(), currentIdentity(r), dashboard.PatientOptions{
		ShowAll:             q.Get("show_all"),
		PrescriptionSuccess: q.Get("prescription_success") == "yes",
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "patient_dashboard.html", "Patient dashboard", struct {
		View *dashboard.PatientView
	}{view})
}

func (h *Handler) BookAppointmentForm(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.accounts.ListDoctors(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "book_appointment.html", "Book appointment", struct {
		Doctors []records.Profile
	}{doctors})
}

// BookAppointment books with the selected doctor. The notification goes out in
// the background; the patient is redirected as soon as the record is stored.
func (h *Handler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	_, err := h.appointments.Book(r.Context(), appointments.BookingRequest{
		Patient:     currentIdentity(r),
		DoctorEmail: r.PostFormValue("doctor"),
		Date:        r.PostFormValue("date"),
		Time:        r.PostFormValue("time"),
		Problem:     r.PostFormValue("problem"),
	})
	if errors.Is(err, appointments.ErrUnknownDoctor) {
		session.FromContext(r.Context()).AddFlash(FlashUnknownDoctor)
		h.redirect(w, r, "/book_appointment")
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.redirect(w, r, "/patient_dashboard")
}
