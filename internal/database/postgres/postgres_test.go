//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kozaktomas/punchclock/internal/config"
	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/rules"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	return setupTestContainerWithLogger(t, nil)
}

func setupTestContainerWithLogger(t *testing.T, logger *zap.SugaredLogger) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if err := pool.Migrate(ctx, logger); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func descriptor(base float32) []float32 {
	d := make([]float32, 128)
	for i := range d {
		d[i] = base
	}
	return d
}

func day(s string) time.Time {
	t, err := time.Parse(database.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestEmployeeRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewEmployeeRepository(pool)

	t.Run("NextEmployeeIDEmpty", func(t *testing.T) {
		id, err := repo.NextEmployeeID(ctx)
		if err != nil {
			t.Fatalf("Failed to get next id: %v", err)
		}
		if id != "EMP001" {
			t.Errorf("Expected EMP001, got %s", id)
		}
	})

	t.Run("CreateAndGet", func(t *testing.T) {
		for i, name := range []string{"Asha Rao", "Vikram Nair", "Meena Iyer"} {
			e := &database.Employee{
				EmployeeID: database.FormatEmployeeID(i + 1),
				Name:       name,
				Email:      fmt.Sprintf("emp%d@example.com", i+1),
				Department: "Engineering",
			}
			if err := repo.CreateEmployee(ctx, e); err != nil {
				t.Fatalf("Failed to create employee: %v", err)
			}
		}

		got, err := repo.GetEmployee(ctx, "EMP002")
		if err != nil {
			t.Fatalf("Failed to get employee: %v", err)
		}
		if got == nil || got.Name != "Vikram Nair" {
			t.Fatalf("Expected Vikram Nair, got %+v", got)
		}
		if got.Role != database.RoleEmployee {
			t.Errorf("Expected default role employee, got %s", got.Role)
		}
		if got.HasFace() {
			t.Error("Expected no face descriptor")
		}

		missing, err := repo.GetEmployee(ctx, "EMP999")
		if err != nil || missing != nil {
			t.Errorf("Expected nil, nil for missing employee, got %v, %v", missing, err)
		}

		next, _ := repo.NextEmployeeID(ctx)
		if next != "EMP004" {
			t.Errorf("Expected EMP004, got %s", next)
		}
	})

	t.Run("CreateConflict", func(t *testing.T) {
		err := repo.CreateEmployee(ctx, &database.Employee{EmployeeID: "EMP001", Name: "Dup", Email: "dup@example.com"})
		if !errors.Is(err, database.ErrConflict) {
			t.Errorf("Expected ErrConflict, got %v", err)
		}
	})

	t.Run("UpdateAndDelete", func(t *testing.T) {
		err := repo.UpdateEmployee(ctx, &database.Employee{
			EmployeeID: "EMP003", Name: "Meena S. Iyer", Email: "meena@example.com", Role: database.RoleAdmin,
		})
		if err != nil {
			t.Fatalf("Failed to update: %v", err)
		}
		got, _ := repo.GetEmployee(ctx, "EMP003")
		if got.Name != "Meena S. Iyer" || got.Role != database.RoleAdmin {
			t.Errorf("Update not persisted: %+v", got)
		}

		err = repo.UpdateEmployee(ctx, &database.Employee{EmployeeID: "EMP404", Email: "x@example.com"})
		if !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if err := repo.DeleteEmployee(ctx, "EMP003"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if err := repo.DeleteEmployee(ctx, "EMP003"); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("FaceDescriptors", func(t *testing.T) {
		if err := repo.SetFaceDescriptor(ctx, "EMP001", descriptor(0.1)); err != nil {
			t.Fatalf("Failed to set descriptor: %v", err)
		}
		if err := repo.SetFaceDescriptor(ctx, "EMP002", descriptor(0.5)); err != nil {
			t.Fatalf("Failed to set descriptor: %v", err)
		}

		got, _ := repo.GetEmployee(ctx, "EMP001")
		if len(got.FaceDescriptor) != 128 {
			t.Fatalf("Expected 128 values, got %d", len(got.FaceDescriptor))
		}

		faces, err := repo.ListFaceDescriptors(ctx)
		if err != nil {
			t.Fatalf("Failed to list descriptors: %v", err)
		}
		if len(faces) != 2 {
			t.Errorf("Expected 2 faces, got %d", len(faces))
		}

		nearest, distances, err := repo.FindNearestFaces(ctx, descriptor(0.12), 2)
		if err != nil {
			t.Fatalf("Failed to find nearest: %v", err)
		}
		if len(nearest) != 2 || nearest[0].EmployeeID != "EMP001" {
			t.Fatalf("Expected EMP001 first, got %+v", nearest)
		}
		if distances[0] > distances[1] {
			t.Errorf("Distances not ascending: %v", distances)
		}
	})
}

func TestAttendanceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	employees := NewEmployeeRepository(pool)
	repo := NewAttendanceRepository(pool)

	for _, id := range []string{"EMP001", "EMP002"} {
		if err := employees.CreateEmployee(ctx, &database.Employee{EmployeeID: id, Name: id, Email: id + "@example.com"}); err != nil {
			t.Fatalf("Failed to create employee: %v", err)
		}
	}

	punch := time.Date(2025, 3, 14, 4, 0, 0, 0, time.UTC)
	insert := func(employeeID, date string, remark rules.Remark) error {
		return repo.InsertRecord(ctx, &database.AttendanceRecord{
			EmployeeID: employeeID,
			Date:       day(date),
			PunchIn:    punch,
			Status:     string(rules.StatusPresent),
			Remark:     string(remark),
		})
	}

	t.Run("InsertAndFind", func(t *testing.T) {
		if err := insert("EMP001", "2025-03-14", rules.RemarkOnTime); err != nil {
			t.Fatalf("Failed to insert: %v", err)
		}
		rec, err := repo.FindRecord(ctx, "EMP001", day("2025-03-14"))
		if err != nil || rec == nil {
			t.Fatalf("Expected record, got %v, %v", rec, err)
		}
		if rec.DateString() != "2025-03-14" {
			t.Errorf("Expected date 2025-03-14, got %s", rec.DateString())
		}
		if rec.ID == 0 {
			t.Error("Expected assigned id")
		}

		none, err := repo.FindRecord(ctx, "EMP001", day("2025-03-15"))
		if err != nil || none != nil {
			t.Errorf("Expected nil, nil, got %v, %v", none, err)
		}
	})

	t.Run("UniquePerDay", func(t *testing.T) {
		err := insert("EMP001", "2025-03-14", rules.RemarkLate)
		if !errors.Is(err, database.ErrConflict) {
			t.Errorf("Expected ErrConflict, got %v", err)
		}
	})

	t.Run("ListsAndReport", func(t *testing.T) {
		if err := insert("EMP001", "2025-03-17", rules.RemarkLateEntry); err != nil {
			t.Fatal(err)
		}
		if err := insert("EMP002", "2025-03-14", rules.RemarkHalfDay); err != nil {
			t.Fatal(err)
		}

		mine, err := repo.ListByEmployee(ctx, "EMP001", 10)
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(mine) != 2 || mine[0].DateString() != "2025-03-17" {
			t.Errorf("Expected newest first, got %+v", mine)
		}

		today, _ := repo.ListByDate(ctx, day("2025-03-14"))
		if len(today) != 2 {
			t.Errorf("Expected 2 records on 2025-03-14, got %d", len(today))
		}

		counts, _ := repo.CountRemarks(ctx, day("2025-03-14"))
		if len(counts) != 2 {
			t.Errorf("Expected 2 remark groups, got %+v", counts)
		}

		report, err := repo.MonthlyReport(ctx, day("2025-03-01"), day("2025-03-31"))
		if err != nil {
			t.Fatalf("Failed to build report: %v", err)
		}
		if len(report) != 2 {
			t.Fatalf("Expected 2 summaries, got %+v", report)
		}
		if report[0].EmployeeID != "EMP001" || report[0].PresentDays != 2 || report[0].LateDays != 1 {
			t.Errorf("Unexpected EMP001 summary %+v", report[0])
		}
	})

	t.Run("CascadeOnDelete", func(t *testing.T) {
		if err := employees.DeleteEmployee(ctx, "EMP002"); err != nil {
			t.Fatal(err)
		}
		rec, _ := repo.FindRecord(ctx, "EMP002", day("2025-03-14"))
		if rec != nil {
			t.Error("Expected attendance to be removed with the employee")
		}
	})
}

func TestMigrationsApplied(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	versions, err := pool.MigrationsApplied(context.Background())
	if err != nil {
		t.Fatalf("Failed to list migrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != "001_init.sql" {
		t.Errorf("Expected 001_init.sql applied, got %v", versions)
	}

	// Re-running is a no-op.
	if err := pool.Migrate(context.Background(), nil); err != nil {
		t.Errorf("Second migrate failed: %v", err)
	}
}

func TestMigrate_LogsAppliedVersions(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	pool, cleanup := setupTestContainerWithLogger(t, zap.New(core).Sugar())
	if pool == nil {
		return
	}
	defer cleanup()

	applied := logs.FilterMessage("migration applied").All()
	if len(applied) != 1 {
		t.Fatalf("Expected 1 migration log entry, got %d", len(applied))
	}
	if v := applied[0].ContextMap()["version"]; v != "001_init.sql" {
		t.Errorf("Expected version 001_init.sql, got %v", v)
	}

	// Nothing pending, nothing logged.
	if err := pool.Migrate(context.Background(), zap.New(core).Sugar()); err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}
	if n := logs.FilterMessage("migration applied").Len(); n != 1 {
		t.Errorf("Expected no new log entries, got %d total", n)
	}
}
