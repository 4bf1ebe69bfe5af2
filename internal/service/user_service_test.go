package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

func TestCreateUserGeneratesTemporaryPassword(t *testing.T) {
	svc, _ := newUserServiceForTest(t)
	ctx := context.Background()

	u, temp, err := svc.Create(ctx, CreateUserInput{Email: " Maria@Example.com ", Plan: domain.PlanFIIs})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if temp == "" || len(temp) != 12 {
		t.Fatalf("temporary password = %q", temp)
	}
	if u.Email != "maria@example.com" || !u.MustChangePassword || u.PasswordHash != "" {
		t.Fatalf("unexpected user: %+v", u)
	}

	logged, err := svc.Authenticate(ctx, "maria@example.com", temp)
	if err != nil {
		t.Fatalf("authenticate with temporary password: %v", err)
	}
	if logged.LastLogin == nil {
		t.Fatal("last login not recorded")
	}

	if err := svc.ChangePassword(ctx, u.ID, temp, "nova-senha-123"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	again, err := svc.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.MustChangePassword {
		t.Fatal("must-change flag not cleared")
	}
	if _, err := svc.Authenticate(ctx, "maria@example.com", temp); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password err = %v", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newUserServiceForTest(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateUserInput
	}{
		{"missing email", CreateUserInput{}},
		{"bad email", CreateUserInput{Email: "not-an-email"}},
		{"unknown plan", CreateUserInput{Email: "a@b.com", Plan: "GOLD"}},
		{"short password", CreateUserInput{Email: "a@b.com", Password: "123"}},
		{"unknown page", CreateUserInput{Email: "a@b.com", CustomPermissions: []string{"nowhere"}}},
		{"admin page grant", CreateUserInput{Email: "a@b.com", CustomPermissions: []string{"admin"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := svc.Create(ctx, tc.in); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}

	mustCreateUser(t, svc, "dup@example.com", domain.PlanVIP, "password-1")
	if _, _, err := svc.Create(ctx, CreateUserInput{Email: "DUP@example.com"}); !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("duplicate err = %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newUserServiceForTest(t)
	ctx := context.Background()
	u := mustCreateUser(t, svc, "joao@example.com", domain.PlanLite, "password-1")

	if _, err := svc.Authenticate(ctx, "joao@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ninguem@example.com", "password-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v", err)
	}

	inactive := domain.UserStatusInactive
	if _, err := svc.Update(ctx, u.ID, UpdateUserInput{Status: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "joao@example.com", "password-1"); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("inactive err = %v", err)
	}
}

func TestProfileResolvesPages(t *testing.T) {
	svc, _ := newUserServiceForTest(t)
	ctx := context.Background()
	u := mustCreateUser(t, svc, "fii@example.com", domain.PlanFIIs, "password-1")

	if _, err := svc.Grant(ctx, u.ID, []string{"Small-Caps", "small-caps"}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	p, err := svc.Profile(ctx, u.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	want := []string{"central-proventos", "dashboard", "fundos-imobiliarios", "relatorio-semanal", "small-caps"}
	if len(p.Pages) != len(want) {
		t.Fatalf("pages = %v, want %v", p.Pages, want)
	}
	for i := range want {
		if p.Pages[i] != want[i] {
			t.Fatalf("pages = %v, want %v", p.Pages, want)
		}
	}

	if _, err := svc.Revoke(ctx, u.ID, []string{"SMALL-CAPS"}); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	if _, err := svc.Update(ctx, u.ID, UpdateUserInput{ExpirationDate: &past}); err != nil {
		t.Fatalf("expire: %v", err)
	}
	p, err = svc.Profile(ctx, u.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if len(p.Pages) != 0 || len(p.User.CustomPermissions) != 0 {
		t.Fatalf("expired profile = %+v", p)
	}
}

func TestGrantRejectsUnknownPages(t *testing.T) {
	svc, _ := newUserServiceForTest(t)
	u := mustCreateUser(t, svc, "g@example.com", domain.PlanLite, "password-1")
	if _, err := svc.Grant(context.Background(), u.ID, []string{"cripto"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.Grant(context.Background(), 999, []string{"micro-caps"}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("missing user err = %v", err)
	}
}

func TestResetPasswordForcesChange(t *testing.T) {
	svc, _ := newUserServiceForTest(t)
	ctx := context.Background()
	u := mustCreateUser(t, svc, "r@example.com", domain.PlanVIP, "password-1")

	temp, err := svc.ResetPassword(ctx, u.ID)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	logged, err := svc.Authenticate(ctx, "r@example.com", temp)
	if err != nil {
		t.Fatalf("login with reset password: %v", err)
	}
	if !logged.MustChangePassword {
		t.Fatal("reset password should force a change")
	}
}
