// Package accounts implements signup, login and profile management for
// doctors and patients.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/medtrack/internal/observability/metrics"
	"github.com/wolfman30/medtrack/internal/records"
	"github.com/wolfman30/medtrack/pkg/logging"
)

var (
	ErrDuplicateIdentity  = errors.New("accounts: email already registered")
	ErrInvalidCredentials = errors.New("accounts: invalid credentials")
	ErrInvalidRole        = errors.New("accounts: unknown role")
	// ErrPasswordRequired means a missing profile record cannot be recreated
	// without a password to sign in with.
	ErrPasswordRequired = errors.New("accounts: password required")
)

// Identity is the authenticated principal carried in a session.
type Identity struct {
	UserID string       `json:"user_id"`
	Name   string       `json:"name"`
	Email  string       `json:"email"`
	Role   records.Role `json:"role"`
}

// SignupRequest is the submitted signup form. Fields are stored as given.
type SignupRequest struct {
	Role     string
	Name     string
	Email    string
	Phone    string
	Gender   string
	Password string
}

// ProfileForm is the submitted profile edit form. An empty Password keeps the
// stored one.
type ProfileForm struct {
	Name     string
	Phone    string
	Gender   string
	Password string
}

// Service authenticates users and manages their profile records.
type Service struct {
	store    records.Store
	metrics  *metrics.ClinicMetrics
	logger   *logging.Logger
	now      func() time.Time
	newID    func() string
	hashCost int
}

// Option customizes a Service.
type Option func(*Service)

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an accounts service over the record store.
func NewService(store records.Store, m *metrics.ClinicMetrics, logger *logging.Logger, opts ...Option) *Service {
	if store == nil {
		panic("accounts: record store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:   store,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup creates a doctor or patient record and returns the identity to sign in.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (Identity, error) {
	role, ok := records.ParseRole(req.Role)
	if !ok {
		s.metrics.ObserveAuth("signup", "unknown", "invalid_role")
		return Identity{}, ErrInvalidRole
	}
	repo, _ := records.Profiles(s.store, role)
	email := strings.TrimSpace(req.Email)

	if _, err := repo.GetByEmail(ctx, email); err == nil {
		s.metrics.ObserveAuth("signup", string(role), "duplicate")
		return Identity{}, ErrDuplicateIdentity
	} else if !errors.Is(err, records.ErrNotFound) {
		return Identity{}, fmt.Errorf("accounts: check existing %s: %w", role, err)
	}

	hash, err := HashPassword(req.Password, s.hashCost)
	if err != nil {
		return Identity{}, err
	}
	now := s.now()
	profile := &records.Profile{
		ID:           s.newID(),
		Email:        email,
		Name:         req.Name,
		Phone:        req.Phone,
		Gender:       req.Gender,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(ctx, profile); err != nil {
		if errors.Is(err, records.ErrAlreadyExists) {
			s.metrics.ObserveAuth("signup", string(role), "duplicate")
			return Identity{}, ErrDuplicateIdentity
		}
		return Identity{}, fmt.Errorf("accounts: create %s: %w", role, err)
	}

	s.metrics.ObserveAuth("signup", string(role), "success")
	s.logger.Info("account created", "role", role, "user_id", profile.ID)
	return identityOf(profile), nil
}

// Login checks the submitted credentials against the role's table.
func (s *Service) Login(ctx context.Context, roleValue, email, password string) (Identity, error) {
	role, ok := records.ParseRole(roleValue)
	if !ok {
		s.metrics.ObserveAuth("login", "unknown", "invalid_role")
		return Identity{}, ErrInvalidCredentials
	}
	repo, _ := records.Profiles(s.store, role)

	profile, err := repo.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, records.ErrNotFound) {
		s.metrics.ObserveAuth("login", string(role), "unknown_email")
		return Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, fmt.Errorf("accounts: load %s: %w", role, err)
	}
	if !CheckPassword(profile.PasswordHash, password) {
		s.metrics.ObserveAuth("login", string(role), "bad_password")
		return Identity{}, ErrInvalidCredentials
	}

	s.metrics.ObserveAuth("login", string(role), "success")
	return identityOf(profile), nil
}

// Profile loads the record behind an identity. A missing record yields an
// empty profile carrying only the identity's email and role.
func (s *Service) Profile(ctx context.Context, id Identity) (*records.Profile, error) {
	repo, ok := records.Profiles(s.store, id.Role)
	if !ok {
		return nil, ErrInvalidRole
	}
	profile, err := repo.GetByEmail(ctx, id.Email)
	if errors.Is(err, records.ErrNotFound) {
		return &records.Profile{Email: id.Email, Role: id.Role}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("accounts: load profile: %w", err)
	}
	return profile, nil
}

// UpdateDoctorProfile applies a partial update to a doctor's record and
// returns the refreshed identity.
func (s *Service) UpdateDoctorProfile(ctx context.Context, id Identity, form ProfileForm) (Identity, error) {
	update := records.ProfileUpdate{
		Name:   form.Name,
		Phone:  form.Phone,
		Gender: form.Gender,
	}
	if form.Password != "" {
		hash, err := HashPassword(form.Password, s.hashCost)
		if err != nil {
			return Identity{}, err
		}
		update.PasswordHash = hash
	}

	profile, err := s.store.Doctors().Update(ctx, id.Email, update)
	if errors.Is(err, records.ErrNotFound) {
		// Record vanished underneath the session; recreate it from the form.
		if update.PasswordHash == "" {
			return Identity{}, ErrPasswordRequired
		}
		now := s.now()
		profile = &records.Profile{
			ID:           id.UserID,
			Email:        id.Email,
			Name:         update.Name,
			Phone:        update.Phone,
			Gender:       update.Gender,
			PasswordHash: update.PasswordHash,
			Role:         records.RoleDoctor,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err = s.store.Doctors().Put(ctx, profile)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("accounts: update doctor profile: %w", err)
	}

	s.logger.Info("doctor profile updated", "user_id", id.UserID)
	return identityOf(profile), nil
}

// OverwritePatientProfile replaces the patient's record with the submitted
// form. Email, role and id come from the session identity.
func (s *Service) OverwritePatientProfile(ctx context.Context, id Identity, form ProfileForm) (Identity, error) {
	now := s.now()
	profile := &records.Profile{
		ID:        id.UserID,
		Email:     id.Email,
		Name:      form.Name,
		Phone:     form.Phone,
		Gender:    form.Gender,
		Role:      records.RolePatient,
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, err := s.store.Patients().GetByEmail(ctx, id.Email)
	switch {
	case err == nil:
		profile.CreatedAt = existing.CreatedAt
		profile.PasswordHash = existing.PasswordHash
		if profile.ID == "" {
			profile.ID = existing.ID
		}
	case !errors.Is(err, records.ErrNotFound):
		return Identity{}, fmt.Errorf("accounts: load patient profile: %w", err)
	}
	if profile.ID == "" {
		profile.ID = s.newID()
	}

	if form.Password != "" {
		hash, err := HashPassword(form.Password, s.hashCost)
		if err != nil {
			return Identity{}, err
		}
		profile.PasswordHash = hash
	}

	if err := s.store.Patients().Put(ctx, profile); err != nil {
		return Identity{}, fmt.Errorf("accounts: overwrite patient profile: %w", err)
	}

	s.logger.Info("patient profile overwritten", "user_id", profile.ID)
	return identityOf(profile), nil
}

// ListDoctors returns every registered doctor for the booking form.
func (s *Service) ListDoctors(ctx context.Context) ([]records.Profile, error) {
	doctors, err := s.store.Doctors().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("accounts: list doctors: %w", err)
	}
	return doctors, nil
}

func identityOf(p *records.Profile) Identity {
	return Identity{
		UserID: p.ID,
		Name:   p.Name,
		Email:  p.Email,
		Role:   p.Role,
	}
}
