package engine

import (
	"context"
	"errors"
	"testing"

	"data-portal/backend/internal/logging"
	"data-portal/backend/internal/policy/domain"
	"data-portal/backend/internal/policy/repository"
)

// mockPolicyRepo implements repository.Repository for tests.
type mockPolicyRepo struct {
	policies []*domain.Policy
	err      error
}

var _ repository.Repository = (*mockPolicyRepo)(nil)

func (m *mockPolicyRepo) ListEnabled(ctx context.Context) ([]*domain.Policy, error) {
	return m.policies, m.err
}

func (m *mockPolicyRepo) Create(ctx context.Context, p *domain.Policy) error {
	m.policies = append(m.policies, p)
	return nil
}

func newEvaluator(t *testing.T, repo repository.Repository) *OPAEvaluator {
	t.Helper()
	e, err := NewOPAEvaluator(repo, logging.Discard())
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	return e
}

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	e := newEvaluator(t, nil)
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_DefaultPolicy(t *testing.T) {
	e := newEvaluator(t, nil)
	testCases := []struct {
		name string
		in   Input
		want bool
	}{
		{"admin on admin route", Input{Role: "admin", Method: "GET", Path: "/api/admin/sessions"}, true},
		{"admin on protected route", Input{Role: "admin", Method: "GET", Path: "/api/session"}, true},
		{"guest on protected route", Input{Role: "guest", Method: "GET", Path: "/api/session"}, true},
		{"guest on admin route", Input{Role: "guest", Method: "DELETE", Path: "/api/admin/sessions/admin"}, false},
		{"unknown role", Input{Role: "root", Method: "GET", Path: "/api/session"}, false},
		{"empty role", Input{Method: "GET", Path: "/api/session"}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Allow(context.Background(), tc.in)
			if err != nil {
				t.Fatalf("Allow: %v", err)
			}
			if got != tc.want {
				t.Errorf("Allow(%+v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestOPAEvaluator_StoredDenyPolicy(t *testing.T) {
	repo := &mockPolicyRepo{policies: []*domain.Policy{{
		ID:      "p1",
		Name:    "read-only-guests",
		Enabled: true,
		Rules: `package portal.access

deny if {
	input.role == "guest"
	input.method != "GET"
}
`,
	}}}
	e := newEvaluator(t, repo)
	if err := e.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if ok, _ := e.Allow(context.Background(), Input{Role: "guest", Method: "GET", Path: "/api/posts"}); !ok {
		t.Error("guest GET should still be allowed")
	}
	if ok, _ := e.Allow(context.Background(), Input{Role: "guest", Method: "POST", Path: "/api/posts"}); ok {
		t.Error("guest POST should be denied by the stored policy")
	}
	if ok, _ := e.Allow(context.Background(), Input{Role: "admin", Method: "POST", Path: "/api/posts"}); !ok {
		t.Error("admin POST should be allowed")
	}
}

func TestOPAEvaluator_ReloadErrorsKeepCurrentPolicy(t *testing.T) {
	testCases := []struct {
		name string
		repo *mockPolicyRepo
	}{
		{"repo error", &mockPolicyRepo{err: errors.New("db down")}},
		{"invalid rego", &mockPolicyRepo{policies: []*domain.Policy{{ID: "bad", Enabled: true, Rules: "package portal.access\n\nallow if {"}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEvaluator(t, tc.repo)
			if err := e.Reload(context.Background()); err == nil {
				t.Fatal("Reload should fail")
			}
			if err := e.HealthCheck(context.Background()); err != nil {
				t.Errorf("HealthCheck after failed reload: %v", err)
			}
		})
	}
}

func TestOPAEvaluator_DisabledPoliciesIgnored(t *testing.T) {
	repo := &mockPolicyRepo{policies: []*domain.Policy{{
		ID:      "p1",
		Enabled: false,
		Rules:   "package portal.access\n\ndeny := true\n",
	}}}
	e := newEvaluator(t, repo)
	if err := e.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if ok, _ := e.Allow(context.Background(), Input{Role: "admin", Method: "GET", Path: "/api/session"}); !ok {
		t.Error("disabled policy must not apply")
	}
}
