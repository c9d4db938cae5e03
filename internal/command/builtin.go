package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nidhogg/herd/internal/agent"
	"github.com/nidhogg/herd/internal/roster"
	"github.com/nidhogg/herd/internal/species"
	"github.com/nidhogg/herd/internal/world"
)

// ---------------------------------------------------------------------------
// Interfaces used by the builtin commands.
// ---------------------------------------------------------------------------

// Herd is the part of world.Herd the menu commands drive.
type Herd interface {
	Spawn(ctx context.Context, speciesID string) (*agent.Agent, error)
	Find(ref string) (*agent.Agent, bool)
	Remove(ctx context.Context, id roster.Handle) error
	RemoveAll(ctx context.Context) int
	Dispatch(ctx context.Context, id roster.Handle, ev agent.Event) error
	Snapshots() []agent.Snapshot
	Settings() agent.Settings
	SetSettings(s agent.Settings)
}

// SpeciesLister lists loadable species.
type SpeciesLister interface {
	List() []species.Summary
}

// ErrUsage is returned when a command is called with missing or bad arguments.
var ErrUsage = errors.New("usage")

// ---------------------------------------------------------------------------
// RegisterBuiltins wires up the menu commands.
// ---------------------------------------------------------------------------

// RegisterBuiltins registers /help, /agents, /species, /spawn, /remove,
// /remove-all, /sleep, /wake, /speech and /sound.
func RegisterBuiltins(reg *Registry, herd Herd, catalog SpeciesLister) {
	reg.Register(helpCommand(reg))
	reg.Register(agentsCommand(herd))
	reg.Register(speciesCommand(catalog))
	reg.Register(spawnCommand(herd))
	reg.Register(removeCommand(herd))
	reg.Register(removeAllCommand(herd))
	reg.Register(sleepCommand(herd, "sleep", true))
	reg.Register(sleepCommand(herd, "wake", false))
	reg.Register(toggleCommand(herd, "speech", "Captions",
		func(s *agent.Settings, on bool) { s.SpeechEnabled = on }))
	reg.Register(toggleCommand(herd, "sound", "Sound",
		func(s *agent.Settings, on bool) { s.SoundEnabled = on }))
}

// ---------------------------------------------------------------------------
// /help
// ---------------------------------------------------------------------------

func helpCommand(reg *Registry) *Command {
	return &Command{
		Name:        "help",
		Description: "List all available commands",
		Usage:       "/help",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			cmds := reg.List()
			var b strings.Builder
			b.WriteString("Available commands:\n")
			for _, c := range cmds {
				fmt.Fprintf(&b, "  /%s — %s\n", c.Name, c.Description)
				if c.Usage != "" {
					fmt.Fprintf(&b, "    Usage: %s\n", c.Usage)
				}
			}
			return &CommandResult{Content: b.String()}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// /agents, /species
// ---------------------------------------------------------------------------

func agentsCommand(herd Herd) *Command {
	return &Command{
		Name:        "agents",
		Description: "List active agents",
		Usage:       "/agents",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			snaps := herd.Snapshots()
			if len(snaps) == 0 {
				return &CommandResult{Content: "No agents active."}, nil
			}
			var b strings.Builder
			b.WriteString("Active agents:\n")
			for _, s := range snaps {
				fmt.Fprintf(&b, "  [%s] %s — %s at (%d,%d)", s.ID, s.Name, s.Behavior, s.Position.X, s.Position.Y)
				if s.Sleeping {
					b.WriteString(", sleeping")
				}
				b.WriteByte('\n')
			}
			return &CommandResult{Content: b.String(), Data: snaps}, nil
		},
	}
}

func speciesCommand(lister SpeciesLister) *Command {
	return &Command{
		Name:        "species",
		Description: "List species that can be spawned",
		Usage:       "/species",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			list := lister.List()
			if len(list) == 0 {
				return &CommandResult{Content: "No species loaded."}, nil
			}
			var b strings.Builder
			b.WriteString("Species:\n")
			for _, s := range list {
				fmt.Fprintf(&b, "  %s — %s (%d behaviors, %d lines)\n", s.ID, s.Name, s.Behaviors, s.Lines)
			}
			return &CommandResult{Content: b.String(), Data: list}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// /spawn, /remove, /remove-all
// ---------------------------------------------------------------------------

func spawnCommand(herd Herd) *Command {
	return &Command{
		Name:        "spawn",
		Description: "Add an agent of a species",
		Usage:       "/spawn <species> [count]",
		Handler: func(ctx context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			fields := strings.Fields(args)
			if len(fields) == 0 || len(fields) > 2 {
				return nil, fmt.Errorf("%w: /spawn <species> [count]", ErrUsage)
			}
			count := 1
			if len(fields) == 2 {
				if _, err := fmt.Sscanf(fields[1], "%d", &count); err != nil || count < 1 || count > 50 {
					return nil, fmt.Errorf("%w: count must be between 1 and 50", ErrUsage)
				}
			}
			var ids []roster.Handle
			var name string
			for i := 0; i < count; i++ {
				a, err := herd.Spawn(ctx, fields[0])
				if err != nil {
					return nil, err
				}
				ids = append(ids, a.ID())
				name = a.Name()
			}
			content := fmt.Sprintf("Spawned %s [%s].", name, ids[0])
			if count > 1 {
				content = fmt.Sprintf("Spawned %d %s.", count, name)
			}
			return &CommandResult{Content: content, Data: ids}, nil
		},
	}
}

func removeCommand(herd Herd) *Command {
	return &Command{
		Name:        "remove",
		Description: "Remove an agent",
		Usage:       "/remove <agent id or name>",
		Handler: func(ctx context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			a, err := find(herd, args, "/remove")
			if err != nil {
				return nil, err
			}
			if err := herd.Remove(ctx, a.ID()); err != nil {
				return nil, err
			}
			return &CommandResult{Content: fmt.Sprintf("Removed %s [%s].", a.Name(), a.ID())}, nil
		},
	}
}

func removeAllCommand(herd Herd) *Command {
	return &Command{
		Name:        "remove-all",
		Description: "Remove every agent",
		Usage:       "/remove-all",
		Handler: func(ctx context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			n := herd.RemoveAll(ctx)
			return &CommandResult{Content: fmt.Sprintf("Removed %d agents.", n), Data: n}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// /sleep, /wake
// ---------------------------------------------------------------------------

func sleepCommand(herd Herd, name string, on bool) *Command {
	desc, verb := "Put an agent to sleep", "is asleep"
	if !on {
		desc, verb = "Wake an agent up", "is awake"
	}
	return &Command{
		Name:        name,
		Description: desc,
		Usage:       "/" + name + " <agent id or name>",
		Handler: func(ctx context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			a, err := find(herd, args, "/"+name)
			if err != nil {
				return nil, err
			}
			if err := herd.Dispatch(ctx, a.ID(), agent.Sleep(on)); err != nil {
				return nil, err
			}
			return &CommandResult{Content: fmt.Sprintf("%s %s.", a.Name(), verb)}, nil
		},
	}
}

func find(herd Herd, ref, usage string) (*agent.Agent, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: %s <agent id or name>", ErrUsage, usage)
	}
	a, ok := herd.Find(ref)
	if !ok {
		return nil, fmt.Errorf("find %q: %w", ref, world.ErrAgentNotFound)
	}
	return a, nil
}

// ---------------------------------------------------------------------------
// /speech, /sound
// ---------------------------------------------------------------------------

func toggleCommand(herd Herd, name, label string, set func(*agent.Settings, bool)) *Command {
	return &Command{
		Name:        name,
		Description: label + " on or off",
		Usage:       "/" + name + " on|off",
		Handler: func(_ context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			var on bool
			switch strings.ToLower(strings.TrimSpace(args)) {
			case "on":
				on = true
			case "off":
			default:
				return nil, fmt.Errorf("%w: /%s on|off", ErrUsage, name)
			}
			s := herd.Settings()
			set(&s, on)
			herd.SetSettings(s)
			state := "off"
			if on {
				state = "on"
			}
			return &CommandResult{Content: fmt.Sprintf("%s %s.", label, state)}, nil
		},
	}
}
