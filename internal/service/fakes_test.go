package service

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/crm-access/internal/auth"
	"github.com/spec-kit/crm-access/internal/domain"
	"github.com/spec-kit/crm-access/internal/events"
	"github.com/spec-kit/crm-access/internal/repository"
)

type memoryUsers struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	err       error
	updateErr error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]*domain.User{}}
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memoryUsers) Update(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	user, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, user := range m.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memoryRoles struct {
	mu      sync.Mutex
	records map[string]domain.StaffRoleRecord
	err     error
}

func newMemoryRoles() *memoryRoles {
	return &memoryRoles{records: map[string]domain.StaffRoleRecord{}}
}

func (m *memoryRoles) Upsert(_ context.Context, record *domain.StaffRoleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records[record.UserID] = *record
	return nil
}

func (m *memoryRoles) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.records[userID]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.records, userID)
	return nil
}

func (m *memoryRoles) Get(_ context.Context, userID string) (*domain.StaffRoleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	record, ok := m.records[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &record, nil
}

func (m *memoryRoles) GetRoleByUserID(ctx context.Context, userID string) (domain.StaffRole, error) {
	record, err := m.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return record.Role, nil
}

type memoryLeads struct {
	mu         sync.Mutex
	leads      map[string]domain.Lead
	lastFilter repository.LeadFilter
	err        error
}

func newMemoryLeads() *memoryLeads {
	return &memoryLeads{leads: map[string]domain.Lead{}}
}

func (m *memoryLeads) Create(_ context.Context, lead *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	lead.ID = uuid.NewString()
	m.leads[lead.ID] = *lead
	return nil
}

func (m *memoryLeads) Update(_ context.Context, lead *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.leads[lead.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.leads[lead.ID] = *lead
	return nil
}

func (m *memoryLeads) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.leads[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.leads, id)
	return nil
}

func (m *memoryLeads) GetByID(_ context.Context, id string) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	lead, ok := m.leads[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &lead, nil
}

func (m *memoryLeads) List(_ context.Context, filter repository.LeadFilter) ([]domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.lastFilter = filter
	out := []domain.Lead{}
	for _, lead := range m.leads {
		if filter.AssignedTo != nil && lead.AssignedTo != *filter.AssignedTo {
			continue
		}
		out = append(out, lead)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// memoryAccounts restores both stores when the transaction body fails.
type memoryAccounts struct {
	users *memoryUsers
	roles *memoryRoles
}

func (m *memoryAccounts) InTx(_ context.Context, fn func(repository.Accounts) error) error {
	m.users.mu.Lock()
	users := make(map[string]*domain.User, len(m.users.users))
	for id, user := range m.users.users {
		users[id] = user
	}
	m.users.mu.Unlock()

	m.roles.mu.Lock()
	records := make(map[string]domain.StaffRoleRecord, len(m.roles.records))
	for id, record := range m.roles.records {
		records[id] = record
	}
	m.roles.mu.Unlock()

	if err := fn(repository.Accounts{Users: m.users, Roles: m.roles}); err != nil {
		m.users.mu.Lock()
		m.users.users = users
		m.users.mu.Unlock()
		m.roles.mu.Lock()
		m.roles.records = records
		m.roles.mu.Unlock()
		return err
	}
	return nil
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func recordAll(d events.Dispatcher) *recordedEvents {
	r := &recordedEvents{}
	d.SubscribeAll(func(_ context.Context, e events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
		return nil
	})
	return r
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newRevocations(t *testing.T) (*repository.RevocationRepository, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repository.NewRevocationRepository(client), mr
}

func newTokens(t *testing.T) *auth.TokenManager {
	t.Helper()
	tokens, err := auth.NewTokenManager(auth.TokenOptions{Secret: "service-test-secret"})
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	return tokens
}

func principalFor(t *testing.T, tokens *auth.TokenManager, id string, role domain.StaffRole) *auth.Principal {
	t.Helper()
	issued, err := tokens.Issue(auth.Subject{ID: id, Email: id + "@example.com", Name: "Operator", Role: role})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := tokens.Verify(issued.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	return &auth.Principal{Claims: claims}
}
