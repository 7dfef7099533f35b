package middleware_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/tenantgate/internal/domain"
	"github.com/Strob0t/tenantgate/internal/domain/tenant"
	"github.com/Strob0t/tenantgate/internal/middleware"
	"github.com/Strob0t/tenantgate/internal/scope"
)

type stubResolver struct {
	results map[string]*tenant.Resolved
	err     error
	seen    []string
}

func (s *stubResolver) Resolve(_ context.Context, host string) (*tenant.Resolved, error) {
	s.seen = append(s.seen, host)
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.results[host]
	if !ok {
		return nil, fmt.Errorf("resolve %s: %w", host, domain.ErrUnknownTenant)
	}
	if !r.Active {
		return nil, fmt.Errorf("resolve %s: %w", host, domain.ErrTenantInactive)
	}
	return r, nil
}

func acmeResolver() *stubResolver {
	return &stubResolver{results: map[string]*tenant.Resolved{
		"acme.example.com": {
			Hostname: "acme.example.com", TenantID: "t-acme", Slug: "acme",
			Partition: "tenant_acme", Plan: tenant.PlanPremium, Active: true,
		},
		"old.example.com": {
			Hostname: "old.example.com", TenantID: "t-old", Slug: "old",
			Partition: "tenant_old", Plan: tenant.PlanFree, Active: false,
		},
	}}
}

func TestHostResolutionBindsScope(t *testing.T) {
	res := acmeResolver()

	var got scope.Tenant
	var ok bool
	handler := middleware.HostResolution(res)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = scope.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenant", http.NoBody)
	req.Host = "acme.example.com:8443"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !ok {
		t.Fatal("expected scope in context")
	}
	if got.Partition() != "tenant_acme" || got.Plan() != tenant.PlanPremium {
		t.Errorf("scope = %s/%s, want tenant_acme/premium", got.Partition(), got.Plan())
	}
	if len(res.seen) != 1 || res.seen[0] != "acme.example.com" {
		t.Errorf("resolver saw %v, want port stripped", res.seen)
	}
}

func TestHostResolutionErrors(t *testing.T) {
	tests := []struct {
		name string
		host string
		err  error
		want int
	}{
		{"unbound host", "nope.example.com", nil, http.StatusNotFound},
		{"inactive tenant", "old.example.com", nil, http.StatusForbidden},
		{"store timeout", "acme.example.com", domain.ErrResolutionTimeout, http.StatusServiceUnavailable},
		{"unexpected", "acme.example.com", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := acmeResolver()
			res.err = tt.err

			called := false
			handler := middleware.HostResolution(res)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Host = tt.host
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if called {
				t.Fatal("handler must not run without a resolved tenant")
			}
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] == "" {
				t.Error("expected error message in body")
			}
		})
	}
}

func TestHostResolutionCanceledWritesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := &stubResolver{err: context.Canceled}
	handler := middleware.HostResolution(res)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody).WithContext(ctx)
	req.Host = "acme.example.com"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}
}

func TestRequestHost(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"acme.example.com", "acme.example.com"},
		{"acme.example.com:8080", "acme.example.com"},
		{"127.0.0.1:8080", "127.0.0.1"},
		{"[::1]:8080", "::1"},
		{"[::1]", "::1"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Host = tt.host
		if got := middleware.RequestHost(req); got != tt.want {
			t.Errorf("RequestHost(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}
