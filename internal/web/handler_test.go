package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/medtrack/internal/accounts"
	"github.com/wolfman30/medtrack/internal/appointments"
	"github.com/wolfman30/medtrack/internal/dashboard"
	"github.com/wolfman30/medtrack/internal/records"
	"github.com/wolfman30/medtrack/internal/session"
	"github.com/wolfman30/medtrack/pkg/logging"
)

var errUpstream = errors.New("dynamodb: service unavailable")

type stubAccounts struct {
	signupErr error
	profile   *records.Profile
	doctors   []records.Profile
	err       error
}

func (s *stubAccounts) Signup(context.Context, accounts.SignupRequest) (accounts.Identity, error) {
	return accounts.Identity{}, s.signupErr
}

func (s *stubAccounts) Login(context.Context, string, string, string) (accounts.Identity, error) {
	return accounts.Identity{}, s.err
}

func (s *stubAccounts) Profile(context.Context, accounts.Identity) (*records.Profile, error) {
	return s.profile, s.err
}

func (s *stubAccounts) UpdateDoctorProfile(context.Context, accounts.Identity, accounts.ProfileForm) (accounts.Identity, error) {
	return accounts.Identity{}, s.err
}

func (s *stubAccounts) OverwritePatientProfile(context.Context, accounts.Identity, accounts.ProfileForm) (accounts.Identity, error) {
	return accounts.Identity{}, s.err
}

func (s *stubAccounts) ListDoctors(context.Context) ([]records.Profile, error) {
	return s.doctors, s.err
}

type stubWorkflow struct {
	bookErr      error
	prescribeErr error
	booked       []appointments.BookingRequest
}

func (s *stubWorkflow) Book(_ context.Context, req appointments.BookingRequest) (*records.Appointment, error) {
	s.booked = append(s.booked, req)
	if s.bookErr != nil {
		return nil, s.bookErr
	}
	return &records.Appointment{ID: "a-1"}, nil
}

func (s *stubWorkflow) SubmitPrescription(context.Context, appointments.PrescriptionRequest) (*appointments.PrescriptionResult, error) {
	if s.prescribeErr != nil {
		return nil, s.prescribeErr
	}
	return nil, errUpstream
}

type stubDashboards struct{}

func (stubDashboards) Doctor(context.Context, accounts.Identity, dashboard.DoctorOptions) (*dashboard.DoctorView, error) {
	return nil, errUpstream
}

func (stubDashboards) AcceptedPatients(context.Context, accounts.Identity) ([]dashboard.PatientEntry, error) {
	return nil, errUpstream
}

func (stubDashboards) Patient(context.Context, accounts.Identity, dashboard.PatientOptions) (*dashboard.PatientView, error) {
	return nil, errUpstream
}

func newTestHandler(t *testing.T, acc *stubAccounts, wf *stubWorkflow) (*Handler, *session.Manager) {
	t.Helper()
	sessions := session.NewManager(session.NewMemoryStore(), session.Config{Secret: "web-test"}, logging.Discard())
	h, err := NewHandler(acc, wf, stubDashboards{}, sessions, logging.Discard())
	require.NoError(t, err)
	return h, sessions
}

func serve(sessions *session.Manager, fn http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	sessions.Middleware(fn).ServeHTTP(rec, req)
	return rec
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestNewHandler_RequiresDependencies(t *testing.T) {
	_, err := NewHandler(nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestTemplatesParse(t *testing.T) {
	pages, err := parseTemplates()
	require.NoError(t, err)
	assert.Len(t, pages, len(pageFiles))
}

func TestUpstreamFailureRendersGenericErrorPage(t *testing.T) {
	h, sessions := newTestHandler(t, &stubAccounts{err: errUpstream}, &stubWorkflow{})

	tests := []struct {
		name string
		fn   http.HandlerFunc
		req  *http.Request
	}{
		{"doctor dashboard", h.DoctorDashboard, httptest.NewRequest(http.MethodGet, "/doctor_dashboard", nil)},
		{"patient dashboard", h.PatientDashboard, httptest.NewRequest(http.MethodGet, "/patient_dashboard", nil)},
		{"accepted patients", h.DoctorViewPatients, httptest.NewRequest(http.MethodGet, "/doctor_view_patients", nil)},
		{"prescription", h.SubmitPrescription, postForm("/submit_prescription", url.Values{"patient": {"p"}, "prescription": {"rest"}})},
		{"profile", h.DoctorProfile, httptest.NewRequest(http.MethodGet, "/doctor_profile", nil)},
		{"booking form", h.BookAppointmentForm, httptest.NewRequest(http.MethodGet, "/book_appointment", nil)},
		{"login", h.Login, postForm("/login", url.Values{"role": {"patient"}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(sessions, tt.fn, tt.req)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Contains(t, rec.Body.String(), "Something went wrong")
			assert.NotContains(t, rec.Body.String(), "dynamodb")
		})
	}
}

func TestSignup_InvalidRoleFlashesAndRedirects(t *testing.T) {
	h, sessions := newTestHandler(t, &stubAccounts{signupErr: accounts.ErrInvalidRole}, &stubWorkflow{})

	rec := serve(sessions, h.Signup, postForm("/signup", url.Values{"role": {"admin"}}))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/signup", rec.Header().Get("Location"))
	require.Len(t, rec.Result().Cookies(), 1)

	req := httptest.NewRequest(http.MethodGet, "/signup", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	page := serve(sessions, h.SignupForm, req)
	assert.Contains(t, page.Body.String(), FlashChooseRole)
}

func TestBookAppointment_UnknownDoctorFlashes(t *testing.T) {
	wf := &stubWorkflow{bookErr: appointments.ErrUnknownDoctor}
	h, sessions := newTestHandler(t, &stubAccounts{}, wf)

	rec := serve(sessions, h.BookAppointment, postForm("/book_appointment", url.Values{
		"doctor": {"ghost@clinic.test"}, "date": {"2024-05-01"}, "time": {"10:00"}, "problem": {"fever"},
	}))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/book_appointment", rec.Header().Get("Location"))
	require.Len(t, wf.booked, 1)
	assert.Equal(t, "ghost@clinic.test", wf.booked[0].DoctorEmail)
	assert.Equal(t, "fever", wf.booked[0].Problem)
}

func TestProfile_MissingRecordRendersDefaults(t *testing.T) {
	h, sessions := newTestHandler(t, &stubAccounts{profile: &records.Profile{Email: "bob@clinic.test"}}, &stubWorkflow{})

	rec := serve(sessions, h.DoctorProfile, httptest.NewRequest(http.MethodGet, "/doctor_profile", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email: bob@clinic.test")
	assert.Contains(t, rec.Body.String(), `action="/doctor_profile"`)
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, &stubAccounts{}, &stubWorkflow{})
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSubmitPrescription_ValidationErrorsRedirectToForm(t *testing.T) {
	for _, err := range []error{appointments.ErrMissingPatient, appointments.ErrEmptyPrescription} {
		h, sessions := newTestHandler(t, &stubAccounts{}, &stubWorkflow{prescribeErr: err})

		rec := serve(sessions, h.SubmitPrescription, postForm("/submit_prescription", url.Values{"patient": {""}, "prescription": {"rest"}}))
		assert.Equal(t, http.StatusFound, rec.Code, err.Error())
		assert.Equal(t, "/doctor_dashboard?write_mode=yes", rec.Header().Get("Location"))
	}
}

func TestUpdateDoctorProfile_PasswordRequiredRedirects(t *testing.T) {
	h, sessions := newTestHandler(t, &stubAccounts{err: accounts.ErrPasswordRequired}, &stubWorkflow{})

	rec := serve(sessions, h.UpdateDoctorProfile, postForm("/doctor_profile", url.Values{"name": {"Dr. Bob"}}))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/doctor_profile", rec.Header().Get("Location"))
}
