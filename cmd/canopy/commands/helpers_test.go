package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/canopy/internal/config"
	"github.com/dyluth/canopy/internal/printer"
	"github.com/dyluth/canopy/internal/resource"
	"github.com/dyluth/canopy/internal/testutil"
	"github.com/dyluth/canopy/pkg/okr"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// harness runs commands against a FakeAPI and, optionally, a miniredis
// mirror.
type harness struct {
	t      *testing.T
	api    *testutil.FakeAPI
	redis  *miniredis.Miniredis
	config string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T, withMirror bool) *harness {
	t.Helper()

	h := &harness{
		t:      t,
		api:    testutil.NewFakeAPI(),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}

	redisURL := ""
	if withMirror {
		h.redis = miniredis.RunT(t)
		redisURL = "redis://" + h.redis.Addr()
	}

	h.config = filepath.Join(t.TempDir(), "canopy.yml")
	body := fmt.Sprintf(`version: "1.0"
api:
  base_url: "http://backend.invalid/api/"
identity:
  user_id: "5"
mirror:
  redis_url: %q
  namespace: "test"
sync:
  roots:
    - id: "12"
      kind: mission
    - id: "30"
      kind: project
`, redisURL)
	require.NoError(t, os.WriteFile(h.config, []byte(body), 0644))

	origAPI, origNow, origNoColor := newAPI, now, color.NoColor
	newAPI = func(*config.CanopyConfig) (resource.API, error) { return h.api, nil }
	now = func() time.Time { return time.Date(2025, 10, 29, 15, 4, 5, 0, time.UTC) }
	color.NoColor = true
	printer.SetOutput(h.stdout, h.stderr)

	t.Cleanup(func() {
		newAPI, now, color.NoColor = origAPI, origNow, origNoColor
		printer.SetOutput(os.Stdout, os.Stderr)
		resetFlags(rootCmd)
	})

	return h
}

// run executes the CLI with args and returns the command error.
func (h *harness) run(args ...string) error {
	h.t.Helper()
	resetFlags(rootCmd)
	h.stdout.Reset()
	h.stderr.Reset()

	rootCmd.SetOut(h.stdout)
	rootCmd.SetErr(h.stderr)
	rootCmd.SetArgs(append([]string{"--config", h.config}, args...))
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.ExecuteContext(context.Background())
}

// resetFlags restores every flag to its default; pflag keeps parsed values
// between Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

// seedMission registers mission 12:
//
//	12 > E1 "Europe" > O1 "Win accounts" > K1 "Sign logos" > A1 "Outreach" > T1, T2
//	               > O2 "Hire"
func (h *harness) seedMission() {
	h.api.AddRoot(okr.Root{ID: "12", Name: "Grow the business"}, okr.KindMission)
	h.api.EpicStore.Seed(okr.Epic{ID: "1", Project: "12", Title: "Europe"})
	h.api.ObjectiveStore.Seed(
		okr.Objective{ID: "2", Epic: "1", Project: "12", Title: "Win accounts"},
		okr.Objective{ID: "3", Epic: "1", Project: "12", Title: "Hire"},
	)
	h.api.KeyResultStore.Seed(okr.KeyResult{ID: "4", Objective: "2", Title: "Sign logos", CurrentValue: 4, TargetValue: 10, Progress: 40})
	h.api.ActivityStore.Seed(okr.Activity{ID: "5", KeyResult: "4", Name: "Outreach", StartDate: "2025-10-01", EndDate: "2025-10-31", Progress: 10})
	h.api.TaskStore.Seed(
		okr.Task{ID: "6", Activity: "5", Title: "Call list", Status: okr.TaskStatusInProgress, CompletionPercentage: 25},
		okr.Task{ID: "7", Activity: "5", Title: "Email list", Status: okr.TaskStatusCompleted, CompletionPercentage: 100, Archived: true},
	)
}

// seedProject registers project 30 with one objective.
func (h *harness) seedProject() {
	h.api.AddRoot(okr.Root{ID: "30", Name: "Side project"}, okr.KindProject)
	h.api.ObjectiveStore.Seed(okr.Objective{ID: "31", Project: "30", Title: "Ship it"})
}
