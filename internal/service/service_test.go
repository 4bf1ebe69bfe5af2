package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/permissions"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository/sqlite"
)

func newTestRepos(t *testing.T) *sqlite.Repositories {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repos := sqlite.NewRepositories(db)
	if err := repos.Init(context.Background()); err != nil {
		t.Fatalf("init db: %v", err)
	}
	return repos
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func mustCreateUser(t *testing.T, svc UserService, email string, plan domain.Plan, password string) *domain.User {
	t.Helper()
	u, _, err := svc.Create(context.Background(), CreateUserInput{Email: email, Plan: plan, Password: password})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := invalid("email", "email is required")
	if !errors.Is(err, ErrValidation) {
		t.Fatal("validation error should match ErrValidation")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "email" || err.Error() != "email is required" {
		t.Fatalf("unexpected validation error: %#v", err)
	}
}

func newUserServiceForTest(t *testing.T) (UserService, *sqlite.Repositories) {
	repos := newTestRepos(t)
	return NewUserService(repos.Users, permissions.Default()), repos
}
