// Package sandbox generates a reproducible demo hospital: departments, staff,
// patients, a ward hierarchy and a handful of live admissions. It writes
// through the domain services so every seeded row passes the same checks as
// production traffic.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/inpatient/internal/domain/admission"
	"github.com/ehr/inpatient/internal/domain/directory"
	"github.com/ehr/inpatient/internal/domain/ward"
	"github.com/ehr/inpatient/internal/platform/apperr"
	"github.com/ehr/inpatient/internal/platform/respond"
)

// SeedConfig controls the volume and shape of generated data.
type SeedConfig struct {
	Departments  int   `json:"departments"`
	WardsPerDept int   `json:"wards_per_department"`
	RoomsPerWard int   `json:"rooms_per_ward"`
	BedsPerRoom  int   `json:"beds_per_room"`
	Doctors      int   `json:"doctors"`
	Nurses       int   `json:"nurses"`
	Patients     int   `json:"patients"`
	Admissions   int   `json:"admissions"`
	Seed         int64 `json:"seed"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Departments:  3,
		WardsPerDept: 2,
		RoomsPerWard: 4,
		BedsPerRoom:  2,
		Doctors:      6,
		Nurses:       8,
		Patients:     30,
		Admissions:   10,
	}
}

func (c SeedConfig) validate() error {
	for name, v := range map[string]int{
		"departments": c.Departments, "wards_per_department": c.WardsPerDept,
		"rooms_per_ward": c.RoomsPerWard, "beds_per_room": c.BedsPerRoom,
		"doctors": c.Doctors, "nurses": c.Nurses, "patients": c.Patients, "admissions": c.Admissions,
	} {
		if v < 0 || v > 500 {
			return apperr.Validation("%s must be between 0 and 500", name)
		}
	}
	if c.Admissions > 0 && c.Doctors == 0 {
		return apperr.Validation("admissions need at least one doctor")
	}
	return nil
}

// SeedResult summarizes one run.
type SeedResult struct {
	Departments int           `json:"departments"`
	Users       int           `json:"users"`
	Wards       int           `json:"wards"`
	Rooms       int           `json:"rooms"`
	Beds        int           `json:"beds"`
	Admissions  int           `json:"admissions"`
	Skipped     int           `json:"skipped"`
	Duration    time.Duration `json:"duration"`
}

var (
	firstNames = []string{
		"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael",
		"Linda", "David", "Elizabeth", "Amara", "Wei", "Priya", "Mateo",
		"Fatima", "Kenji", "Olga", "Tunde", "Ines", "Rahul",
	}
	lastNames = []string{
		"Smith", "Johnson", "Garcia", "Nguyen", "Okafor", "Patel", "Kim",
		"Rossi", "Silva", "Haddad", "Novak", "Mensah", "Tanaka", "Lopez",
	}
	departments = []struct{ Code, Name string }{
		{"MED", "Internal Medicine"},
		{"SUR", "General Surgery"},
		{"CAR", "Cardiology"},
		{"PED", "Paediatrics"},
		{"ORT", "Orthopaedics"},
		{"NEU", "Neurology"},
	}
	roomTypes = []ward.RoomType{
		ward.RoomGeneral, ward.RoomGeneral, ward.RoomSemiPrivate, ward.RoomPrivate, ward.RoomICU,
	}
	dailyRates = map[ward.RoomType]float64{
		ward.RoomGeneral: 1200, ward.RoomSemiPrivate: 2500, ward.RoomPrivate: 4000, ward.RoomICU: 9000,
	}
	admitReasons = []string{
		"Community acquired pneumonia", "Chest pain for evaluation", "Post-operative observation",
		"Diabetic ketoacidosis", "Acute kidney injury", "Cellulitis of lower limb",
		"Exacerbation of COPD", "Syncope under investigation",
	}
)

// DataGenerator produces deterministic names and numbers from a seed.
type DataGenerator struct {
	rng     *rand.Rand
	counter int
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// Person returns a name and a unique address for it.
func (g *DataGenerator) Person(domain string) (name, email string) {
	g.counter++
	first, last := g.pick(firstNames), g.pick(lastNames)
	name = first + " " + last
	email = fmt.Sprintf("%s.%s.%d@%s", strings.ToLower(first), strings.ToLower(last), g.counter, domain)
	return name, email
}

func (g *DataGenerator) RoomType() ward.RoomType {
	return roomTypes[g.rng.Intn(len(roomTypes))]
}

func (g *DataGenerator) Reason() string {
	return g.pick(admitReasons)
}

// Directory is where seeded people and departments are written.
type Directory interface {
	CreateUser(ctx context.Context, u *directory.User) error
	CreateDepartment(ctx context.Context, d *directory.Department) error
}

// Hierarchy is where seeded wards, rooms and beds are written.
type Hierarchy interface {
	CreateWard(ctx context.Context, w *ward.Ward) error
	CreateRoom(ctx context.Context, rm *ward.Room) error
	CreateBed(ctx context.Context, b *ward.Bed) error
}

// Admitter places seeded patients in beds.
type Admitter interface {
	Admit(ctx context.Context, req admission.AdmitRequest) (*admission.View, error)
}

// Seeder orchestrates a seed run.
type Seeder struct {
	dir       Directory
	hierarchy Hierarchy
	admitter  Admitter
	logger    zerolog.Logger
	mu        sync.Mutex
}

func NewSeeder(dir Directory, hierarchy Hierarchy, admitter Admitter, logger zerolog.Logger) *Seeder {
	return &Seeder{
		dir:       dir,
		hierarchy: hierarchy,
		admitter:  admitter,
		logger:    logger.With().Str("component", "sandbox").Logger(),
	}
}

// Run writes one demo hospital. Numbers are prefixed with a short run tag so
// repeated runs against the same store do not collide on unique columns.
// Admissions that hit an unavailable bed are counted as skipped.
func (s *Seeder) Run(ctx context.Context, cfg SeedConfig) (*SeedResult, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	gen := NewDataGenerator(cfg.Seed)
	tag := strings.ToUpper(uuid.NewString()[:4])
	result := &SeedResult{}

	users := func(role directory.Role, n int) ([]*directory.User, error) {
		out := make([]*directory.User, 0, n)
		for i := 0; i < n; i++ {
			name, email := gen.Person("sandbox.example.org")
			if role == directory.RoleDoctor {
				name = "Dr. " + name
			}
			u := &directory.User{Name: name, Email: strings.ToLower(tag) + "." + email, Role: role}
			if err := s.dir.CreateUser(ctx, u); err != nil {
				return nil, fmt.Errorf("seed %s: %w", strings.ToLower(string(role)), err)
			}
			out = append(out, u)
		}
		result.Users += n
		return out, nil
	}

	doctors, err := users(directory.RoleDoctor, cfg.Doctors)
	if err != nil {
		return nil, err
	}
	if _, err := users(directory.RoleNurse, cfg.Nurses); err != nil {
		return nil, err
	}
	patients, err := users(directory.RolePatient, cfg.Patients)
	if err != nil {
		return nil, err
	}

	var beds []uuid.UUID
	for d := 0; d < cfg.Departments; d++ {
		def := departments[d%len(departments)]
		dept := &directory.Department{Code: fmt.Sprintf("%s-%s%d", tag, def.Code, d+1), Name: def.Name}
		if err := s.dir.CreateDepartment(ctx, dept); err != nil {
			return nil, fmt.Errorf("seed department: %w", err)
		}
		result.Departments++

		for w := 0; w < cfg.WardsPerDept; w++ {
			wd := &ward.Ward{
				Name:         fmt.Sprintf("%s Ward %c", def.Name, 'A'+w),
				WardNumber:   fmt.Sprintf("%s-W%d%d", tag, d+1, w+1),
				DepartmentID: dept.ID,
				Capacity:     cfg.RoomsPerWard * cfg.BedsPerRoom,
				Active:       true,
			}
			if err := s.hierarchy.CreateWard(ctx, wd); err != nil {
				return nil, fmt.Errorf("seed ward: %w", err)
			}
			result.Wards++

			for r := 0; r < cfg.RoomsPerWard; r++ {
				rt := gen.RoomType()
				rm := &ward.Room{
					RoomNumber: fmt.Sprintf("%s-R%d%d%02d", tag, d+1, w+1, r+1),
					WardID:     wd.ID,
					RoomType:   rt,
					Capacity:   cfg.BedsPerRoom,
					DailyRate:  dailyRates[rt],
					Active:     true,
				}
				if err := s.hierarchy.CreateRoom(ctx, rm); err != nil {
					return nil, fmt.Errorf("seed room: %w", err)
				}
				result.Rooms++

				for b := 0; b < cfg.BedsPerRoom; b++ {
					bed := &ward.Bed{BedNumber: fmt.Sprintf("%s-%c", rm.RoomNumber, 'A'+b), RoomID: rm.ID}
					if err := s.hierarchy.CreateBed(ctx, bed); err != nil {
						return nil, fmt.Errorf("seed bed: %w", err)
					}
					beds = append(beds, bed.ID)
					result.Beds++
				}
			}
		}
	}

	if s.admitter != nil {
		for i := 0; i < cfg.Admissions && i < len(patients) && i < len(beds); i++ {
			_, err := s.admitter.Admit(ctx, admission.AdmitRequest{
				PatientID:   patients[i].ID,
				DoctorID:    doctors[i%len(doctors)].ID,
				BedID:       beds[i],
				Reason:      gen.Reason(),
				IsEmergency: gen.rng.Intn(5) == 0,
				AdmittedBy:  "sandbox",
			})
			if err != nil {
				if apperr.Is(err, apperr.KindConflict) {
					result.Skipped++
					continue
				}
				return nil, fmt.Errorf("seed admission: %w", err)
			}
			result.Admissions++
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Int("wards", result.Wards).
		Int("beds", result.Beds).
		Int("admissions", result.Admissions).
		Dur("duration", result.Duration).
		Msg("sandbox seeded")
	return result, nil
}

// SeedHandler exposes the seeder over HTTP for demo environments.
type SeedHandler struct {
	seeder *Seeder
}

func NewSeedHandler(seeder *Seeder) *SeedHandler {
	return &SeedHandler{seeder: seeder}
}

func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/seed", h.handleSeed)
}

func (h *SeedHandler) handleSeed(c echo.Context) error {
	cfg := DefaultSeedConfig()
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&cfg); err != nil {
			return apperr.Validation("invalid request body")
		}
	}
	result, err := h.seeder.Run(c.Request().Context(), cfg)
	if err != nil {
		return err
	}
	return respond.Created(c, "Sandbox data created", result)
}
