package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/crm-access/internal/domain"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T, clock *testClock) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(TokenOptions{Secret: "test-secret", Now: clock.Now})
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	return tm
}

func staffSubject(id string, role domain.StaffRole) Subject {
	return Subject{ID: id, Email: id + "@example.com", Name: "User " + id, Role: role, OrganizationID: "org-1"}
}

func decodePayload(t *testing.T, token string) map[string]any {
	t.Helper()
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(parts))
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return out
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	if _, err := NewTokenManager(TokenOptions{Secret: "  "}); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	clock := newTestClock()
	tm := newTestManager(t, clock)

	roles := []domain.StaffRole{domain.StaffRoleStaff, domain.StaffRoleManager, domain.StaffRoleCLevel, domain.StaffRoleAdmin}
	for _, role := range roles {
		subject := staffSubject("u-"+strings.ToLower(string(role)), role)
		issued, err := tm.Issue(subject)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}

		claims, err := tm.Verify(issued.Token)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if claims.Subject != subject.ID || claims.Email != subject.Email || claims.Role != role || claims.OrganizationID != subject.OrganizationID {
			t.Fatalf("claims mismatch: %+v", claims)
		}
		if claims.Name != subject.Name {
			t.Fatalf("expected name %q, got %q", subject.Name, claims.Name)
		}
		if got := claims.ExpiresAtTime().Sub(claims.IssuedAtTime()); got != 24*time.Hour {
			t.Fatalf("expected 24h lifetime, got %s", got)
		}
		if claims.ID != issued.ID || claims.ID == "" {
			t.Fatalf("expected jti %q, got %q", issued.ID, claims.ID)
		}
	}
}

func TestIssueOmitsOptionalOrganization(t *testing.T) {
	tm := newTestManager(t, newTestClock())
	subject := staffSubject("u1", domain.StaffRoleStaff)
	subject.OrganizationID = ""

	issued, err := tm.Issue(subject)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := tm.Verify(issued.Token); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestIssueValidatesSubject(t *testing.T) {
	tm := newTestManager(t, newTestClock())
	cases := map[string]func(*Subject){
		"missing id":    func(s *Subject) { s.ID = "" },
		"missing email": func(s *Subject) { s.Email = "" },
		"missing name":  func(s *Subject) { s.Name = " " },
		"unknown role":  func(s *Subject) { s.Role = "OWNER" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			subject := staffSubject("u1", domain.StaffRoleStaff)
			mutate(&subject)
			if _, err := tm.Issue(subject); !errors.Is(err, ErrInvalidSubject) {
				t.Fatalf("expected ErrInvalidSubject, got %v", err)
			}
		})
	}
}

func TestAccessPayloadFields(t *testing.T) {
	tm := newTestManager(t, newTestClock())
	issued, err := tm.Issue(staffSubject("u1", domain.StaffRoleManager))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	payload := decodePayload(t, issued.Token)
	for _, key := range []string{"sub", "email", "name", "role", "organizationId", "iat", "exp"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("payload missing %q: %v", key, payload)
		}
	}
	if _, ok := payload["type"]; ok {
		t.Fatalf("access payload must not carry a type: %v", payload)
	}
}

func TestRefreshPayloadFields(t *testing.T) {
	tm := newTestManager(t, newTestClock())
	issued, err := tm.IssueRefresh("u1")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	payload := decodePayload(t, issued.Token)
	if payload["type"] != "refresh" || payload["sub"] != "u1" {
		t.Fatalf("unexpected refresh payload: %v", payload)
	}
	for _, key := range []string{"email", "name", "role", "organizationId"} {
		if _, ok := payload[key]; ok {
			t.Fatalf("refresh payload must not carry %q", key)
		}
	}
	if got := issued.ExpiresAt.Sub(issued.IssuedAt); got != DefaultRefreshTTL {
		t.Fatalf("expected refresh lifetime %s, got %s", DefaultRefreshTTL, got)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	tm := newTestManager(t, newTestClock())
	issued, err := tm.Issue(staffSubject("u1", domain.StaffRoleStaff))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	sigStart := strings.LastIndex(issued.Token, ".") + 1
	for i := sigStart; i < len(issued.Token); i++ {
		replacement := byte('A')
		if issued.Token[i] == 'A' {
			replacement = 'B'
		}
		tampered := issued.Token[:i] + string(replacement) + issued.Token[i+1:]
		_, err := tm.Verify(tampered)
		if err == nil {
			t.Fatalf("tampered signature at %d accepted", i)
		}
		if !errors.Is(err, ErrInvalidSignature) && !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("unexpected error kind at %d: %v", i, err)
		}
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	clock := newTestClock()
	other, err := NewTokenManager(TokenOptions{Secret: "someone-else", Now: clock.Now})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	issued, err := other.Issue(staffSubject("u1", domain.StaffRoleAdmin))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := newTestManager(t, clock).Verify(issued.Token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	clock := newTestClock()
	tm := newTestManager(t, clock)
	issued, err := tm.Issue(staffSubject("u1", domain.StaffRoleStaff))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.Advance(24*time.Hour - time.Second)
	if _, err := tm.Verify(issued.Token); err != nil {
		t.Fatalf("expected token valid one second before expiry: %v", err)
	}

	clock.Advance(time.Second)
	if _, err := tm.Verify(issued.Token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired at exp, got %v", err)
	}

	clock.Advance(time.Hour)
	if _, err := tm.Verify(issued.Token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired after exp, got %v", err)
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	tm := newTestManager(t, newTestClock())

	refresh, err := tm.IssueRefresh("u1")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if _, err := tm.Verify(refresh.Token); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	if _, err := tm.VerifyRefresh(refresh.Token); err != nil {
		t.Fatalf("verify refresh: %v", err)
	}

	access, err := tm.Issue(staffSubject("u1", domain.StaffRoleStaff))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := tm.VerifyRefresh(access.Token); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	tm := newTestManager(t, newTestClock())
	for _, raw := range []string{"", "abc", "a.b", "a.b.c.d", "a.b.c", "!!.??.##"} {
		if _, err := tm.Verify(raw); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("expected ErrMalformedToken for %q, got %v", raw, err)
		}
	}
}

func TestVerifyAcceptsPreviousSecret(t *testing.T) {
	clock := newTestClock()
	old, err := NewTokenManager(TokenOptions{Secret: "old-secret", Now: clock.Now})
	if err != nil {
		t.Fatalf("old manager: %v", err)
	}
	issued, err := old.Issue(staffSubject("u1", domain.StaffRoleStaff))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rotated, err := NewTokenManager(TokenOptions{Secret: "new-secret", PreviousSecrets: []string{"old-secret"}, Now: clock.Now})
	if err != nil {
		t.Fatalf("rotated manager: %v", err)
	}
	if _, err := rotated.Verify(issued.Token); err != nil {
		t.Fatalf("expected previous key to verify: %v", err)
	}

	fresh, err := rotated.Issue(staffSubject("u1", domain.StaffRoleStaff))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := old.Verify(fresh.Token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("new tokens must be signed with the new key, got %v", err)
	}
}

func TestVerifyConcurrent(t *testing.T) {
	tm := newTestManager(t, newTestClock())
	issued, err := tm.Issue(staffSubject("u1", domain.StaffRoleStaff))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tm.Verify(issued.Token); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent verify: %v", err)
	}
}
