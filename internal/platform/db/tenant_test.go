package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/inpatient/internal/platform/apperr"
)

func TestResolveTenant(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		jwt    interface{}
		want   string
	}{
		{name: "token wins", target: "/?tenant_id=query", header: "header", jwt: "st_marys", want: "st_marys"},
		{name: "header over query", target: "/?tenant_id=query", header: "general_east", want: "general_east"},
		{name: "query", target: "/?tenant_id=clinic_xyz", want: "clinic_xyz"},
		{name: "empty token falls through", target: "/", header: "general_east", jwt: "", want: "general_east"},
		{name: "non-string token ignored", target: "/", jwt: 42, want: "default"},
		{name: "default", target: "/", want: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("X-Tenant-ID", tt.header)
			}
			c := echo.New().NewContext(req, httptest.NewRecorder())
			if tt.jwt != nil {
				c.Set("jwt_tenant_id", tt.jwt)
			}
			if got := resolveTenant(c, "default"); got != tt.want {
				t.Errorf("resolveTenant() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSchemaName(t *testing.T) {
	tests := []struct {
		tenant string
		want   string
		ok     bool
	}{
		{"default", "tenant_default", true},
		{"St_Marys_2", "tenant_St_Marys_2", true},
		{"a", "tenant_a", true},
		{"", "", false},
		{"general-east", "", false},
		{"a.b", "", false},
		{"ward 7", "", false},
		{"x; DROP SCHEMA public", "", false},
		{"tenant@1", "", false},
	}

	for _, tt := range tests {
		got, err := SchemaName(tt.tenant)
		if tt.ok {
			if err != nil || got != tt.want {
				t.Errorf("SchemaName(%q) = %q, %v; want %q", tt.tenant, got, err, tt.want)
			}
			continue
		}
		if !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("SchemaName(%q): expected validation error, got %v", tt.tenant, err)
		}
	}
}

func TestTenantMiddleware_RejectsInvalidTenant(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/wards", nil)
	req.Header.Set("X-Tenant-ID", "../public")
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	h := TenantMiddleware(nil, "default")(func(c echo.Context) error {
		called = true
		return nil
	})

	err := h(c)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if called {
		t.Error("handler must not run for an invalid tenant")
	}
}

func TestCreateTenantSchema_InvalidIDs(t *testing.T) {
	for _, id := range []string{"tenant-with-dash", "tenant.with.dot", "ten ant", "drop;table"} {
		if err := CreateTenantSchema(context.Background(), nil, id, nil); err == nil {
			t.Errorf("expected error for invalid tenant ID %q", id)
		}
	}
}

func TestWithTenantConn_InvalidID(t *testing.T) {
	ctx := context.Background()
	got, release, err := WithTenantConn(ctx, nil, "no/slashes")
	if err == nil {
		t.Fatal("expected error")
	}
	if release != nil {
		t.Error("release must be nil on error")
	}
	if got != ctx {
		t.Error("context must be returned unchanged on error")
	}
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	if ConnFromContext(ctx) != nil {
		t.Error("expected nil conn from empty context")
	}
	if TxFromContext(ctx) != nil {
		t.Error("expected nil tx from empty context")
	}
	if TenantFromContext(ctx) != "" {
		t.Error("expected empty tenant from empty context")
	}

	wrong := context.WithValue(ctx, DBConnKey, "not-a-conn")
	wrong = context.WithValue(wrong, DBTxKey, "not-a-tx")
	wrong = context.WithValue(wrong, TenantIDKey, 12345)
	if ConnFromContext(wrong) != nil || TxFromContext(wrong) != nil || TenantFromContext(wrong) != "" {
		t.Error("accessors must ignore values of the wrong type")
	}

	if got := TenantFromContext(context.WithValue(ctx, TenantIDKey, "st_marys")); got != "st_marys" {
		t.Errorf("expected st_marys, got %q", got)
	}
}

func TestWithTx_NoConnection(t *testing.T) {
	_, _, err := WithTx(context.Background())
	if err == nil || err.Error() != "no database connection in context" {
		t.Fatalf("unexpected error: %v", err)
	}
}
