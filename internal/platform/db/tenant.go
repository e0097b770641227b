package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/ehr/inpatient/internal/platform/apperr"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	DBConnKey   contextKey = "db_conn"
	DBTxKey     contextKey = "db_tx"
)

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

var errAcquire = errors.New("acquire connection")

// SchemaName returns the Postgres schema holding a tenant's wards, beds and
// admissions. Tenant IDs are interpolated into DDL, so only [A-Za-z0-9_] is
// accepted.
func SchemaName(tenantID string) (string, error) {
	if !tenantIDPattern.MatchString(tenantID) {
		return "", apperr.Validation("invalid tenant identifier %q", tenantID)
	}
	return "tenant_" + tenantID, nil
}

// TenantMiddleware binds each request to one tenant schema. The tenant comes
// from the verified token, then X-Tenant-ID, then ?tenant_id, then the
// configured default.
func TenantMiddleware(pool *pgxpool.Pool, defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID := resolveTenant(c, defaultTenant)

			ctx, release, err := WithTenantConn(c.Request().Context(), pool, tenantID)
			switch {
			case err == nil:
			case apperr.Is(err, apperr.KindValidation):
				return err
			case errors.Is(err, errAcquire):
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			default:
				return fmt.Errorf("resolve tenant: %w", err)
			}
			defer release()

			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("tenant_id", tenantID)
			return next(c)
		}
	}
}

// WithTenantConn acquires a connection with search_path set to the tenant's
// schema and returns a context carrying it. Callers must invoke release.
// The seed command uses this outside any HTTP request.
func WithTenantConn(ctx context.Context, pool *pgxpool.Pool, tenantID string) (context.Context, func(), error) {
	schema, err := SchemaName(tenantID)
	if err != nil {
		return ctx, nil, err
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("%w: %v", errAcquire, err)
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", schema)); err != nil {
		conn.Release()
		return ctx, nil, fmt.Errorf("set search_path: %w", err)
	}
	ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	ctx = context.WithValue(ctx, DBConnKey, conn)
	return ctx, conn.Release, nil
}

func resolveTenant(c echo.Context, defaultTenant string) string {
	candidates := []string{
		stringValue(c.Get("jwt_tenant_id")),
		c.Request().Header.Get("X-Tenant-ID"),
		c.QueryParam("tenant_id"),
	}
	for _, tid := range candidates {
		if tid != "" {
			return tid
		}
	}
	return defaultTenant
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

// ConnFromContext returns the tenant-scoped connection, or nil outside a
// tenant request.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// TxFromContext returns the transaction opened by WithTx or a TxRunner, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the tenant-scoped connection stored in ctx
// and returns a derived context carrying it. The caller commits or rolls back.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, errors.New("no database connection in context")
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}

// CreateTenantSchema provisions a hospital: it creates the tenant schema and
// applies every migration in src to it. A nil src only creates the schema.
func CreateTenantSchema(ctx context.Context, pool *pgxpool.Pool, tenantID string, src fs.FS) error {
	schema, err := SchemaName(tenantID)
	if err != nil {
		return err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if src != nil {
		if _, err := NewMigratorFS(pool, src).Up(ctx, schema); err != nil {
			return fmt.Errorf("migrate %s: %w", schema, err)
		}
	}
	return nil
}
