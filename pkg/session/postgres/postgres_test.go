package postgres

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rhuss/kontrakt/pkg/session"
	"github.com/rhuss/kontrakt/pkg/transcript"
)

func init() {
	// Point testcontainers at the podman socket when DOCKER_HOST is unset.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			if sock := strings.TrimSpace(string(out)); sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a migrated Backend.
// Tests are skipped when no container runtime is available.
func setupTestDB(t *testing.T) *Backend {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}
	_, podmanErr := exec.LookPath("podman")
	_, dockerErr := exec.LookPath("docker")
	if podmanErr != nil && dockerErr != nil {
		t.Skip("neither podman nor docker found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("kontrakt_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	backend, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating backend: %v", err)
	}
	t.Cleanup(func() {
		backend.Close()
	})

	return backend
}

func TestPendingMigrationsOrdered(t *testing.T) {
	migrations, err := pendingMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected at least 2 migrations, got %d", len(migrations))
	}
	if migrations[0].version != 1 || !strings.Contains(migrations[0].name, "schema_migrations") {
		t.Errorf("first migration = %+v", migrations[0])
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i].version <= migrations[i-1].version {
			t.Errorf("migrations out of order: %+v", migrations)
		}
	}
}

func TestPostgres_UpsertAndGet(t *testing.T) {
	backend := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	if err := backend.Upsert(ctx, session.Row{UserID: "u1", Data: []byte(`[{"role":"user","content":[{"text":"Hello"}]}]`), UpdatedAt: now}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	row, err := backend.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !row.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", row.UpdatedAt, now)
	}
	if !strings.Contains(string(row.Data), "Hello") {
		t.Errorf("Data = %s", row.Data)
	}
}

func TestPostgres_GetMissing(t *testing.T) {
	backend := setupTestDB(t)
	if _, err := backend.Get(context.Background(), "nobody"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_DeleteIfUnchanged(t *testing.T) {
	backend := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	backend.Upsert(ctx, session.Row{UserID: "u1", Data: []byte("[]"), UpdatedAt: now})

	removed, err := backend.DeleteIfUnchanged(ctx, "u1", now.Add(-time.Second))
	if err != nil || removed {
		t.Fatalf("stale timestamp: removed=%v err=%v", removed, err)
	}
	removed, err = backend.DeleteIfUnchanged(ctx, "u1", now)
	if err != nil || !removed {
		t.Fatalf("matching timestamp: removed=%v err=%v", removed, err)
	}
}

func TestPostgres_StoreRoundTrip(t *testing.T) {
	backend := setupTestDB(t)
	store := session.NewStore(backend)
	ctx := context.Background()

	msgs := []transcript.Message{
		transcript.UserText("Tell me about Acme"),
		{Role: transcript.RoleModel, Parts: []transcript.Part{transcript.ToolRequest("getContractDetailsByName", map[string]any{"contractName": "Acme"})}},
		{Role: transcript.RoleTool, Parts: []transcript.Part{transcript.ToolResponse("getContractDetailsByName", map[string]any{"found": true})}},
		transcript.ModelText("Acme is active."),
	}
	if err := store.Save(ctx, "u1", msgs); err != nil {
		t.Fatalf("save: %v", err)
	}

	sess, err := store.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(sess.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(sess.Messages))
	}
	if err := transcript.Validate(*sess); err != nil {
		t.Errorf("stored transcript invalid: %v", err)
	}

	if err := store.Clear(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Load(ctx, "u1"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestPostgres_MigrationsIdempotent(t *testing.T) {
	backend := setupTestDB(t)
	if err := backend.migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
