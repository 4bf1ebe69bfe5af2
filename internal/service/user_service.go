package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/permissions"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

const minPasswordLength = 8

// Profile is a user together with the pages they can currently open.
type Profile struct {
	User  *domain.User
	Pages []string
}

type CreateUserInput struct {
	Email             string
	FirstName         string
	LastName          string
	Password          string
	Plan              domain.Plan
	Status            domain.UserStatus
	CustomPermissions []string
	ExpirationDate    *time.Time
}

// UpdateUserInput carries optional changes; nil fields are left untouched.
type UpdateUserInput struct {
	Email             *string
	FirstName         *string
	LastName          *string
	Plan              *domain.Plan
	Status            *domain.UserStatus
	CustomPermissions *[]string
	ExpirationDate    *time.Time
	ClearExpiration   bool
}

// UserService describes user lifecycle operations.
type UserService interface {
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	ChangePassword(ctx context.Context, id int64, current, next string) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	Profile(ctx context.Context, id int64) (*Profile, error)
	List(ctx context.Context, filter repository.UserFilter) ([]domain.User, int, error)
	Create(ctx context.Context, in CreateUserInput) (*domain.User, string, error)
	Update(ctx context.Context, id int64, in UpdateUserInput) (*domain.User, error)
	ResetPassword(ctx context.Context, id int64) (string, error)
	Delete(ctx context.Context, id int64) error
	Grant(ctx context.Context, id int64, pages []string) (*domain.User, error)
	Revoke(ctx context.Context, id int64, pages []string) (*domain.User, error)
}

type userService struct {
	users   repository.UserRepository
	catalog *permissions.Catalog
	now     func() time.Time
}

func NewUserService(users repository.UserRepository, catalog *permissions.Catalog) UserService {
	return &userService{
		users:   users,
		catalog: catalog,
		now:     time.Now,
	}
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsAdmin() && user.Status != domain.UserStatusActive {
		return nil, ErrAccountInactive
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now
	return sanitizeUser(user), nil
}

func (s *userService) ChangePassword(ctx context.Context, id int64, current, next string) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	if current == next {
		return invalid("newPassword", "new password must differ from the current one")
	}
	hash, err := hashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, id, hash, false)
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) Profile(ctx context.Context, id int64) (*Profile, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Profile{
		User:  sanitizeUser(user),
		Pages: s.catalog.Resolve(user, s.now()),
	}, nil
}

func (s *userService) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, int, error) {
	if filter.Plan != "" && !filter.Plan.Valid() {
		return nil, 0, invalid("plan", "unknown plan %q", filter.Plan)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, invalid("status", "unknown status %q", filter.Status)
	}
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.users.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range users {
		users[i] = *sanitizeUser(&users[i])
	}
	return users, total, nil
}

// Create registers a user. When no password is given a temporary one is generated,
// returned once, and the user must change it on first login.
func (s *userService) Create(ctx context.Context, in CreateUserInput) (*domain.User, string, error) {
	email := normalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, "", err
	}
	if in.Plan == "" {
		in.Plan = domain.PlanVIP
	}
	if !in.Plan.Valid() {
		return nil, "", invalid("plan", "unknown plan %q", in.Plan)
	}
	if in.Status == "" {
		in.Status = domain.UserStatusActive
	}
	if !in.Status.Valid() {
		return nil, "", invalid("status", "unknown status %q", in.Status)
	}
	grants, err := s.validGrants(in.CustomPermissions)
	if err != nil {
		return nil, "", err
	}

	password := in.Password
	temporary := ""
	if password == "" {
		temporary = TemporaryPassword()
		password = temporary
	} else if err := validatePassword(password); err != nil {
		return nil, "", err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user := &domain.User{
		Email:              email,
		FirstName:          strings.TrimSpace(in.FirstName),
		LastName:           strings.TrimSpace(in.LastName),
		PasswordHash:       hash,
		Plan:               in.Plan,
		Status:             in.Status,
		CustomPermissions:  grants,
		ExpirationDate:     in.ExpirationDate,
		MustChangePassword: temporary != "",
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}
	return sanitizeUser(user), temporary, nil
}

func (s *userService) Update(ctx context.Context, id int64, in UpdateUserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		user.Email = email
	}
	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Plan != nil {
		if !in.Plan.Valid() {
			return nil, invalid("plan", "unknown plan %q", *in.Plan)
		}
		user.Plan = *in.Plan
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, invalid("status", "unknown status %q", *in.Status)
		}
		user.Status = *in.Status
	}
	if in.CustomPermissions != nil {
		grants, err := s.validGrants(*in.CustomPermissions)
		if err != nil {
			return nil, err
		}
		user.CustomPermissions = grants
	}
	switch {
	case in.ClearExpiration:
		user.ExpirationDate = nil
	case in.ExpirationDate != nil:
		exp := in.ExpirationDate.UTC()
		user.ExpirationDate = &exp
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) ResetPassword(ctx context.Context, id int64) (string, error) {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return "", err
	}
	temporary := TemporaryPassword()
	hash, err := hashPassword(temporary)
	if err != nil {
		return "", err
	}
	if err := s.users.UpdatePassword(ctx, id, hash, true); err != nil {
		return "", err
	}
	return temporary, nil
}

func (s *userService) Delete(ctx context.Context, id int64) error {
	return s.users.Delete(ctx, id)
}

// Grant adds page grants on top of the user's plan.
func (s *userService) Grant(ctx context.Context, id int64, pages []string) (*domain.User, error) {
	grants, err := s.validGrants(pages)
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return nil, invalid("pages", "at least one page is required")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	merged, _ := s.catalog.NormalizeGrants(append(user.CustomPermissions, grants...))
	user.CustomPermissions = merged
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) Revoke(ctx context.Context, id int64, pages []string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	drop := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		drop[strings.ToLower(strings.TrimSpace(p))] = struct{}{}
	}
	kept := make([]string, 0, len(user.CustomPermissions))
	for _, p := range user.CustomPermissions {
		if _, ok := drop[p]; !ok {
			kept = append(kept, p)
		}
	}
	user.CustomPermissions = kept
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) validGrants(pages []string) ([]string, error) {
	valid, unknown := s.catalog.NormalizeGrants(pages)
	if len(unknown) > 0 {
		return nil, invalid("customPermissions", "unknown pages: %s", strings.Join(unknown, ", "))
	}
	return valid, nil
}

// TemporaryPassword returns a random 12 character password.
func TemporaryPassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return invalid("password", "password must be at least %d characters", minPasswordLength)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email", "invalid email %q", email)
	}
	return nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	out := *user
	out.PasswordHash = ""
	out.CustomPermissions = append([]string(nil), user.CustomPermissions...)
	return &out
}
