package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/crm-access/internal/auth"
	"github.com/spec-kit/crm-access/internal/domain"
	"github.com/spec-kit/crm-access/internal/events"
	"github.com/spec-kit/crm-access/internal/repository"
	apperrors "github.com/spec-kit/crm-access/pkg/util"
)

type authFixture struct {
	svc         *AuthService
	users       *memoryUsers
	roles       *memoryRoles
	tokens      *auth.TokenManager
	revocations *repository.RevocationRepository
	recorded    *recordedEvents
	user        *domain.User
}

const fixturePassword = "correct-horse-battery"

func newAuthFixture(t *testing.T) (*authFixture, func()) {
	t.Helper()
	users := newMemoryUsers()
	hash, err := auth.HashPassword(fixturePassword, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	org := "org-1"
	user := &domain.User{
		Name:           "Ada",
		Email:          "ada@example.com",
		PasswordHash:   hash,
		Role:           domain.StaffRoleManager,
		OrganizationID: &org,
		Status:         domain.UserStatusActive,
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed: %v", err)
	}
	roles := newMemoryRoles()
	roles.records[user.ID] = domain.StaffRoleRecord{UserID: user.ID, Role: domain.StaffRoleManager}

	tokens := newTokens(t)
	revocations, mr := newRevocations(t)
	dispatcher := events.NewInMemoryDispatcher()
	f := &authFixture{
		svc: NewAuthService(AuthDependencies{
			UserRepo:    users,
			Roles:       roles,
			Tokens:      tokens,
			Revocations: revocations,
			Dispatcher:  dispatcher,
		}),
		users:       users,
		roles:       roles,
		tokens:      tokens,
		revocations: revocations,
		recorded:    recordAll(dispatcher),
		user:        user,
	}
	return f, mr.Close
}

func expectStatus(t *testing.T, err error, status int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d", status)
	}
	if got := apperrors.ToDomainError(err).HTTPStatus; got != status {
		t.Fatalf("expected status %d, got %d (%v)", status, got, err)
	}
}

func TestLoginIssuesPair(t *testing.T) {
	f, _ := newAuthFixture(t)
	session, err := f.svc.Login(context.Background(), "ada@example.com", fixturePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := f.tokens.Verify(session.Access.Token)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.Subject != f.user.ID || claims.Role != domain.StaffRoleManager || claims.OrganizationID != "org-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := f.tokens.VerifyRefresh(session.Refresh.Token); err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if types := f.recorded.types(); len(types) != 1 || types[0] != events.EventSessionStarted {
		t.Fatalf("expected session_started, got %v", types)
	}
}

func TestLoginFailuresLookAlike(t *testing.T) {
	f, _ := newAuthFixture(t)
	ctx := context.Background()

	_, wrongPassword := f.svc.Login(ctx, "ada@example.com", "not-the-password")
	_, unknown := f.svc.Login(ctx, "nobody@example.com", fixturePassword)
	expectStatus(t, wrongPassword, http.StatusUnauthorized)
	expectStatus(t, unknown, http.StatusUnauthorized)
	if wrongPassword.Error() != unknown.Error() {
		t.Fatalf("failures differ: %q vs %q", wrongPassword, unknown)
	}

	f.user.Status = domain.UserStatusSuspended
	if err := f.users.Update(ctx, f.user); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	_, suspended := f.svc.Login(ctx, "ada@example.com", fixturePassword)
	expectStatus(t, suspended, http.StatusUnauthorized)

	_, missing := f.svc.Login(ctx, "", "")
	expectStatus(t, missing, http.StatusBadRequest)
}

func TestRefreshRotates(t *testing.T) {
	f, _ := newAuthFixture(t)
	ctx := context.Background()
	first, err := f.svc.Login(ctx, "ada@example.com", fixturePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	second, err := f.svc.Refresh(ctx, first.Refresh.Token)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.Refresh.ID == first.Refresh.ID {
		t.Fatal("expected a new refresh token id")
	}

	_, err = f.svc.Refresh(ctx, first.Refresh.Token)
	expectStatus(t, err, http.StatusUnauthorized)

	if _, err := f.svc.Refresh(ctx, second.Refresh.Token); err != nil {
		t.Fatalf("rotated refresh token should work: %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f, _ := newAuthFixture(t)
	session, err := f.svc.Login(context.Background(), "ada@example.com", fixturePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	_, err = f.svc.Refresh(context.Background(), session.Access.Token)
	expectStatus(t, err, http.StatusUnauthorized)

	_, err = f.svc.Refresh(context.Background(), "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	f, _ := newAuthFixture(t)
	ctx := context.Background()
	session, err := f.svc.Login(ctx, "ada@example.com", fixturePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	f.roles.records[f.user.ID] = domain.StaffRoleRecord{UserID: f.user.ID, Role: domain.StaffRoleAdmin}

	next, err := f.svc.Refresh(ctx, session.Refresh.Token)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	claims, err := f.tokens.Verify(next.Access.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Role != domain.StaffRoleAdmin {
		t.Fatalf("expected refreshed role ADMIN, got %s", claims.Role)
	}
}

func TestSessionRoleComesFromRoleRecord(t *testing.T) {
	f, _ := newAuthFixture(t)
	ctx := context.Background()

	f.user.Role = domain.StaffRoleAdmin
	if err := f.users.Update(ctx, f.user); err != nil {
		t.Fatalf("update: %v", err)
	}
	delete(f.roles.records, f.user.ID)

	session, err := f.svc.Login(ctx, "ada@example.com", fixturePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := f.tokens.Verify(session.Access.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Role != domain.StaffRoleStaff {
		t.Fatalf("a user without a role record must get STAFF, got %s", claims.Role)
	}

	f.roles.err = errors.New("staff_roles unavailable")
	_, err = f.svc.Login(ctx, "ada@example.com", fixturePassword)
	expectStatus(t, err, http.StatusInternalServerError)
}

func TestConcurrentRefreshSucceedsOnce(t *testing.T) {
	f, _ := newAuthFixture(t)
	ctx := context.Background()
	session, err := f.svc.Login(ctx, "ada@example.com", fixturePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	const callers = 8
	results := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Refresh(ctx, session.Refresh.Token)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		expectStatus(t, err, http.StatusUnauthorized)
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one refresh to succeed, got %d", succeeded)
	}
}

func TestLogoutRevokesBothTokens(t *testing.T) {
	f, _ := newAuthFixture(t)
	ctx := context.Background()
	session, err := f.svc.Login(ctx, "ada@example.com", fixturePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := f.tokens.Verify(session.Access.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if err := f.svc.Logout(ctx, &auth.Principal{Claims: claims}, session.Refresh.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	for _, id := range []string{session.Access.ID, session.Refresh.ID} {
		revoked, err := f.revocations.IsRevoked(ctx, id)
		if err != nil {
			t.Fatalf("is revoked: %v", err)
		}
		if !revoked {
			t.Fatalf("token %s should be revoked", id)
		}
	}

	_, err = f.svc.Refresh(ctx, session.Refresh.Token)
	expectStatus(t, err, http.StatusUnauthorized)

	types := f.recorded.types()
	if types[len(types)-1] != events.EventSessionRevoked {
		t.Fatalf("expected session_revoked last, got %v", types)
	}
}

func TestRefreshFailsClosedWhenRevocationStoreDown(t *testing.T) {
	f, stop := newAuthFixture(t)
	session, err := f.svc.Login(context.Background(), "ada@example.com", fixturePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	stop()

	_, err = f.svc.Refresh(context.Background(), session.Refresh.Token)
	expectStatus(t, err, http.StatusInternalServerError)
	if code := apperrors.ToDomainError(err).Code; code != "DATA_STORE_UNAVAILABLE" {
		t.Fatalf("expected DATA_STORE_UNAVAILABLE, got %s", code)
	}
}
