package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/inpatient/internal/config"
	"github.com/ehr/inpatient/internal/domain/admission"
	"github.com/ehr/inpatient/internal/domain/allocation"
	"github.com/ehr/inpatient/internal/domain/directory"
	"github.com/ehr/inpatient/internal/domain/ward"
	"github.com/ehr/inpatient/internal/platform/auth"
	"github.com/ehr/inpatient/internal/platform/db"
	"github.com/ehr/inpatient/internal/platform/lock"
	"github.com/ehr/inpatient/internal/platform/metrics"
	"github.com/ehr/inpatient/internal/platform/middleware"
	"github.com/ehr/inpatient/internal/platform/notification"
	"github.com/ehr/inpatient/internal/platform/respond"
	"github.com/ehr/inpatient/internal/platform/sandbox"
	"github.com/ehr/inpatient/internal/platform/validate"
	"github.com/ehr/inpatient/internal/platform/websocket"
	"github.com/ehr/inpatient/migrations"
)

const version = "0.1.0"

// liveFeed forwards committed allocation and admission changes to the bed
// board hub. It lives here so the domain packages stay unaware of transport.
type liveFeed struct {
	hub    *websocket.Hub
	logger zerolog.Logger
}

func (f *liveFeed) BedStatusChanged(ctx context.Context, change allocation.BedChange) {
	f.publish(ctx, "bed.status_changed", websocket.TopicBeds, "bed", change.BedID.String(), change)
}

func (f *liveFeed) AdmissionChanged(ctx context.Context, event string, v *admission.View) {
	f.publish(ctx, event, websocket.TopicAdmissions, "admission", v.ID.String(), v)
}

func (f *liveFeed) publish(ctx context.Context, eventType, topic, resourceType, id string, data interface{}) {
	ev, err := websocket.NewEvent(eventType, topic, resourceType, id, data)
	if err == nil {
		err = f.hub.Publish(ctx, ev)
	}
	if err != nil {
		f.logger.Error().Err(err).Str("event", eventType).Msg("publish bed board event")
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "inpatient-server",
		Short: "Inpatient bed management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the inpatient API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			target, _ := cmd.Flags().GetInt("to")

			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := db.NewMigratorFS(pool, migrations.FS).UpTo(ctx, schema, target)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies all)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")

			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigratorFS(pool, migrations.FS).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.Drifted {
						status = "drifted"
					}
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore the tenant schema from a backup instead.")
			return nil
		},
	})

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant schema and apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			schema, err := db.SchemaName(name)
			if err != nil {
				return fmt.Errorf("--name: %w", err)
			}

			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: %s\n", schema)
			if err := db.CreateTenantSchema(ctx, pool, name, migrations.FS); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func seedCmd() *cobra.Command {
	cfg := sandbox.DefaultSeedConfig()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the store with a demo hospital",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := appCfg.Validate(); err != nil {
				return err
			}
			logger := newLogger(appCfg)

			ctx := context.Background()
			app, err := buildApp(ctx, appCfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.pool != nil {
				tctx, release, err := db.WithTenantConn(ctx, app.pool, appCfg.DefaultTenant)
				if err != nil {
					return err
				}
				defer release()
				ctx = tctx
			}

			result, err := app.seeder.Run(ctx, cfg)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d ward(s), %d room(s), %d bed(s), %d user(s), %d admission(s) in %s\n",
				result.Wards, result.Rooms, result.Beds, result.Users, result.Admissions, result.Duration.Round(time.Millisecond))
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&cfg.Departments, "departments", cfg.Departments, "Number of departments")
	f.IntVar(&cfg.WardsPerDept, "wards", cfg.WardsPerDept, "Wards per department")
	f.IntVar(&cfg.RoomsPerWard, "rooms", cfg.RoomsPerWard, "Rooms per ward")
	f.IntVar(&cfg.BedsPerRoom, "beds", cfg.BedsPerRoom, "Beds per room")
	f.IntVar(&cfg.Doctors, "doctors", cfg.Doctors, "Number of doctors")
	f.IntVar(&cfg.Nurses, "nurses", cfg.Nurses, "Number of nurses")
	f.IntVar(&cfg.Patients, "patients", cfg.Patients, "Number of patients")
	f.IntVar(&cfg.Admissions, "admissions", cfg.Admissions, "Number of admissions")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed (0 picks one)")
	return cmd
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// app holds the wired server and the resources it must release on shutdown.
type app struct {
	echo       *echo.Echo
	seeder     *sandbox.Seeder
	dispatcher *notification.Dispatcher
	hub        *websocket.Hub
	pool       *pgxpool.Pool
	redis      *redis.Client
}

// Close releases whatever buildApp managed to set up, so it is safe on a
// partially built app.
func (a *app) Close() {
	if a.dispatcher != nil {
		a.dispatcher.Flush()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// buildApp wires stores, locking, notifications and HTTP routes from cfg.
func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}

	var (
		dirRepo  directory.Repository
		wardRepo ward.Repository
		admRepo  admission.Repository
		tx       db.TxRunner
	)
	if cfg.UsesMemoryStore() {
		dirRepo = directory.NewMemoryRepo()
		wardRepo = ward.NewMemoryRepo()
		admRepo = admission.NewMemoryRepo()
		tx = db.NewMemTxRunner()
		logger.Warn().Msg("using in-memory store, data is lost on restart")
	} else {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.pool = pool
		dirRepo = directory.NewRepo(pool)
		wardRepo = ward.NewRepo(pool)
		admRepo = admission.NewRepo(pool)
		tx = db.NewTxRunner(pool)
		logger.Info().Msg("connected to database")
	}

	checks := map[string]db.Check{}
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.DistributedLocking() {
		client, err := lock.NewRedisClient(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("configure bed locks: %w", err)
		}
		a.redis = client
		rl := lock.NewRedisLocker(client, cfg.LockTTL, logger)
		if err := rl.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("redis not reachable at startup")
		}
		checks["redis"] = rl.Ping
		locker = rl
		logger.Info().Msg("using redis bed locks")
	}

	var sender notification.EmailSender = notification.NewLogSender(logger)
	if cfg.SendGridAPIKey != "" {
		sender = notification.NewSendGridSender(cfg.SendGridAPIKey, cfg.NotifyFromName, cfg.NotifyFromEmail, cfg.NotifySandbox)
	}
	a.dispatcher = notification.NewDispatcher(sender, nil, logger)

	m := metrics.New()
	a.hub = websocket.NewHub(logger)
	feed := &liveFeed{hub: a.hub, logger: logger}

	dirSvc := directory.NewService(dirRepo)

	wardSvc := ward.NewService(wardRepo, admRepo, tx)
	wardSvc.SetDepartmentLookup(dirSvc)
	occupancy := ward.NewOccupancyReporter(wardRepo, admRepo, m)

	engine := allocation.NewEngine(wardRepo, admRepo, locker, tx)
	engine.SetMetrics(m)
	engine.SetLogger(logger)
	engine.SetTimeout(cfg.AllocationTimeout)
	engine.SetEventSink(feed)

	admSvc := admission.NewService(admRepo, engine, dirSvc, wardSvc)
	admSvc.SetNotifier(a.dispatcher)
	admSvc.SetMetrics(m)
	admSvc.SetLogger(logger)
	admSvc.SetEventSink(feed)

	a.seeder = sandbox.NewSeeder(dirSvc, wardSvc, admSvc, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = respond.ErrorHandler(logger)
	e.Validator = validate.New()

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.Sanitize(logger))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID", "X-Dev-User", "X-Dev-Roles"},
	}))

	// Health and metrics sit outside auth.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool, checks))
	}

	apiV1 := e.Group("/api/v1")

	// Auth middleware
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		var key []byte
		if cfg.AuthSigningKey != "" {
			key = []byte(cfg.AuthSigningKey)
		}
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: key,
		}))
	}

	// Tenant middleware
	if a.pool != nil {
		apiV1.Use(db.TenantMiddleware(a.pool, cfg.DefaultTenant))
	}

	apiV1.Use(middleware.Audit(logger))

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.ETag())

	directory.NewHandler(dirSvc).RegisterRoutes(apiV1)
	ward.NewHandler(wardSvc, occupancy).RegisterRoutes(apiV1)
	allocation.NewHandler(engine).RegisterRoutes(apiV1)
	admission.NewHandler(admSvc).RegisterRoutes(apiV1)

	board := apiV1.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNurse, auth.RoleRegistrar, auth.RoleBedManager))
	websocket.NewHandler(a.hub, cfg.CORSOrigins).RegisterRoutes(board)

	if cfg.IsDev() {
		sandboxGroup := apiV1.Group("/sandbox", auth.RequireRole(auth.RoleAdmin))
		sandbox.NewSeedHandler(a.seeder).RegisterRoutes(sandboxGroup)
	}

	a.echo = e
	return a, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	a, err := buildApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	defer a.Close()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.StoreDriver).Msg("starting server")
		if err := a.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.echo.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
