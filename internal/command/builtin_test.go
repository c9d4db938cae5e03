package command

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nidhogg/herd/internal/behavior"
	"github.com/nidhogg/herd/internal/species"
	"github.com/nidhogg/herd/internal/world"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*Registry, *world.Herd) {
	t.Helper()
	reg := species.NewRegistry(zap.NewNop())
	reg.Put("fluttershy", behavior.Species{
		Name: "Fluttershy",
		Behaviors: []behavior.Definition{
			{Name: "hover", Weight: 1, DurationMin: 60, DurationMax: 60},
			{Name: "nap", Movement: behavior.MovementSleep, Skip: true, DurationMin: 60, DurationMax: 60},
		},
	})
	herd := world.NewHerd(world.Options{Species: reg}, zap.NewNop())
	cmds := NewRegistry()
	RegisterBuiltins(cmds, herd, reg)
	return cmds, herd
}

func run(t *testing.T, cmds *Registry, input string) *CommandResult {
	t.Helper()
	result, err := cmds.Dispatch(context.Background(), input, &CommandContext{Source: "test"})
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", input, err)
	}
	return result
}

func TestHelpListsEveryBuiltin(t *testing.T) {
	cmds, _ := setup(t)
	out := run(t, cmds, "/help").Content
	for _, name := range []string{"agents", "species", "spawn", "remove", "remove-all", "sleep", "wake", "speech", "sound"} {
		if !strings.Contains(out, "/"+name+" ") {
			t.Errorf("help is missing /%s", name)
		}
	}
}

func TestSpawnRemoveLifecycle(t *testing.T) {
	cmds, herd := setup(t)

	if got := run(t, cmds, "/agents").Content; got != "No agents active." {
		t.Errorf("got %q", got)
	}
	if got := run(t, cmds, "/species").Content; !strings.Contains(got, "fluttershy — Fluttershy (2 behaviors, 0 lines)") {
		t.Errorf("species listing: %q", got)
	}

	run(t, cmds, "/spawn fluttershy 3")
	if herd.Len() != 3 {
		t.Fatalf("got %d agents, want 3", herd.Len())
	}
	if got := run(t, cmds, "/agents").Content; strings.Count(got, "Fluttershy") != 3 {
		t.Errorf("agents listing: %q", got)
	}

	run(t, cmds, "/remove Fluttershy")
	if herd.Len() != 2 {
		t.Fatalf("got %d agents, want 2", herd.Len())
	}

	if got := run(t, cmds, "/remove-all").Content; got != "Removed 2 agents." {
		t.Errorf("got %q", got)
	}
	if herd.Len() != 0 {
		t.Fatalf("got %d agents, want 0", herd.Len())
	}
}

func TestSleepAndWake(t *testing.T) {
	cmds, herd := setup(t)
	a, err := herd.Spawn(context.Background(), "fluttershy")
	if err != nil {
		t.Fatal(err)
	}

	run(t, cmds, "/sleep "+string(a.ID()))
	if !a.Snapshot().Sleeping || a.Current().Name != "nap" {
		t.Errorf("agent not asleep: %+v", a.Snapshot())
	}
	run(t, cmds, "/wake fluttershy")
	if a.Snapshot().Sleeping || a.Current().Name != "hover" {
		t.Errorf("agent still asleep: %+v", a.Snapshot())
	}
}

func TestToggles(t *testing.T) {
	cmds, herd := setup(t)

	run(t, cmds, "/speech on")
	run(t, cmds, "/sound ON")
	if s := herd.Settings(); !s.SpeechEnabled || !s.SoundEnabled {
		t.Errorf("settings not enabled: %+v", s)
	}
	run(t, cmds, "/speech off")
	if s := herd.Settings(); s.SpeechEnabled || !s.SoundEnabled {
		t.Errorf("speech not disabled: %+v", s)
	}
}

func TestBuiltinErrors(t *testing.T) {
	cmds, _ := setup(t)
	ctx := context.Background()

	cases := []struct {
		input string
		usage bool
	}{
		{"/spawn", true},
		{"/spawn fluttershy many", true},
		{"/spawn fluttershy 51", true},
		{"/spawn discord", false},
		{"/remove", true},
		{"/remove nobody", false},
		{"/sleep", true},
		{"/speech maybe", true},
	}
	for _, tc := range cases {
		_, err := cmds.Dispatch(ctx, tc.input, nil)
		if err == nil {
			t.Errorf("%s: expected an error", tc.input)
			continue
		}
		if got := errors.Is(err, ErrUsage); got != tc.usage {
			t.Errorf("%s: usage error = %v, want %v (%v)", tc.input, got, tc.usage, err)
		}
	}

	if _, err := cmds.Dispatch(ctx, "/spawn discord", nil); !errors.Is(err, world.ErrSpeciesNotFound) {
		t.Errorf("got %v, want ErrSpeciesNotFound", err)
	}
	if _, err := cmds.Dispatch(ctx, "/wake nobody", nil); !errors.Is(err, world.ErrAgentNotFound) {
		t.Errorf("got %v, want ErrAgentNotFound", err)
	}
}
