package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"alcyxob/workout-sync/internal/api"
	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/reconcile"
	"alcyxob/workout-sync/internal/repository/sqlite"
	"alcyxob/workout-sync/internal/service"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "workoutctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"login", "list", "show", "create", "save", "add-exercise", "note",
		"remove-exercise", "reorder", "add-set", "update-set", "remove-set"}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "Command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "yaml", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "", "list", "--format", "xml")
	assert.ErrorContains(t, err, "invalid format")
}

// execute runs workoutctl with args against server and returns its stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func newServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	repos := store.Repositories()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := gin.New()
	api.SetupRoutes(router, logger,
		service.NewAuthService(repos.Users, "test-secret", time.Hour),
		service.NewWorkoutService(repos, reconcile.New(repos, logger), logger),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL
}

const workoutYAML = `
name: Push
exercises:
  - referenceId: bench
    order: 0
    sets:
      - {weight: 80, reps: 5, order: 0}
      - {weight: 85, reps: 5, order: 1}
`

func TestWorkflow(t *testing.T) {
	// Keep a stray ./config.yaml out of the picture.
	t.Chdir(t.TempDir())
	base := newServer(t)

	token, err := execute(t, "", "login", "--server", base, "--register", "--name", "Ann",
		"--email", "ann@example.com", "--password", "password123")
	require.NoError(t, err)
	token = strings.TrimSpace(token)
	require.NotEmpty(t, token)

	run := func(stdin string, args ...string) domain.Workout {
		t.Helper()
		args = append(args, "--server", base, "--token", token, "--format", "json")
		out, err := execute(t, stdin, args...)
		require.NoError(t, err)
		var w domain.Workout
		require.NoError(t, json.Unmarshal([]byte(out), &w), out)
		return w
	}

	w := run(workoutYAML, "create", "-f", "-")
	require.Len(t, w.Exercises, 1)
	bench := w.Exercises[0]

	w = run("", "add-set", w.ID, bench.ID, "--order", "1", "--weight", "82.5")
	require.Len(t, w.Exercises[0].Sets, 3)
	assert.Equal(t, 82.5, *w.Exercises[0].Sets[1].Weight)

	w = run("", "update-set", w.ID, bench.Sets[0].ID, "--reps", "3")
	assert.Equal(t, 3, *w.Exercises[0].Sets[0].Reps)

	w = run("", "add-exercise", w.ID, "--ref", "dip", "--order", "0")
	require.Len(t, w.Exercises, 2)
	dip := w.Exercises[0]
	assert.Equal(t, "dip", dip.ReferenceID)

	w = run("", "reorder", w.ID, bench.ID, dip.ID)
	assert.Equal(t, bench.ID, w.Exercises[0].ID)

	w = run("", "note", w.ID, dip.ID, "elbows in")
	assert.Equal(t, "elbows in", *w.Exercises[1].Note)

	w = run("", "remove-set", w.ID, bench.Sets[1].ID)
	assert.Len(t, w.Exercises[0].Sets, 2)

	w = run("", "remove-exercise", w.ID, dip.ID)
	assert.Len(t, w.Exercises, 1)

	shown := run("", "show", w.ID)
	assert.Equal(t, w.Exercises, shown.Exercises)
}

func TestSaveFromFile(t *testing.T) {
	t.Chdir(t.TempDir())
	base := newServer(t)
	token, err := execute(t, "", "login", "--server", base, "--register", "--name", "Bo",
		"--email", "bo@example.com", "--password", "password123")
	require.NoError(t, err)
	token = strings.TrimSpace(token)

	out, err := execute(t, workoutYAML, "create", "-f", "-", "--server", base, "--token", token)
	require.NoError(t, err)
	var created domain.Workout
	require.NoError(t, yaml.Unmarshal([]byte(out), &created), out)

	created.Name = "Push B"
	created.Exercises[0].Sets = created.Exercises[0].Sets[:1]
	file := filepath.Join(t.TempDir(), "w.yaml")
	b, err := yaml.Marshal(created)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, b, 0o600))

	out, err = execute(t, "", "save", created.ID, "-f", file, "--server", base, "--token", token)
	require.NoError(t, err)
	var saved domain.Workout
	require.NoError(t, yaml.Unmarshal([]byte(out), &saved), out)
	assert.Equal(t, "Push B", saved.Name)
	assert.Equal(t, created.Version+1, saved.Version)
	assert.Len(t, saved.Exercises[0].Sets, 1)

	// The file still carries the old version.
	_, err = execute(t, "", "save", created.ID, "-f", file, "--server", base, "--token", token)
	assert.ErrorIs(t, err, service.ErrVersionConflict)
}
