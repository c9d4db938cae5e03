package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type agentView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Behavior string `json:"behavior"`
	Position struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"position"`
	Sleeping bool   `json:"sleeping"`
	Dragging bool   `json:"dragging"`
	Caption  string `json:"caption,omitempty"`
}

type cli struct {
	server  string
	asJSON  bool
	verbose bool
	client  *client
	out     io.Writer
}

func newRootCmd() *cobra.Command {
	c := &cli{out: os.Stdout}
	root := &cobra.Command{
		Use:           "herdctl",
		Short:         "Control a running herd server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.out = cmd.OutOrStdout()
			c.client = newClient(c.server)
		},
	}
	server := os.Getenv("HERD_SERVER")
	if server == "" {
		server = "http://localhost:3210"
	}
	root.PersistentFlags().StringVarP(&c.server, "server", "s", server, "herd server URL")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print raw JSON responses")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "print requests")

	root.AddCommand(
		c.agentsCmd(),
		c.spawnCmd(),
		c.removeCmd(),
		c.eventCmd(),
		c.sleepCmd("sleep", "Put an agent to sleep", true),
		c.sleepCmd("wake", "Wake an agent up", false),
		c.commandCmd(),
		c.statusCmd(),
	)
	return root
}

// print writes raw JSON with --json, or the human form otherwise.
func (c *cli) print(raw []byte, human func() error) error {
	if c.asJSON {
		_, err := fmt.Fprintln(c.out, strings.TrimSpace(string(raw)))
		return err
	}
	return human()
}

func (c *cli) logf(format string, args ...interface{}) {
	if c.verbose {
		fmt.Fprintf(os.Stderr, "\033[90m"+format+"\033[0m\n", args...)
	}
}

func (c *cli) agentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List active agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.logf("GET /api/agents")
			raw, err := c.client.get(cmd.Context(), "/api/agents")
			if err != nil {
				return err
			}
			return c.print(raw, func() error {
				var agents []agentView
				if err := json.Unmarshal(raw, &agents); err != nil {
					return fmt.Errorf("parse agents: %w", err)
				}
				if len(agents) == 0 {
					fmt.Fprintln(c.out, "No agents active.")
					return nil
				}
				for _, a := range agents {
					c.printAgent(a)
				}
				return nil
			})
		},
	}
}

func (c *cli) printAgent(a agentView) {
	fmt.Fprintf(c.out, "\033[36m[%s]\033[0m %s — %s at (%d,%d)", a.ID, a.Name, a.Behavior, a.Position.X, a.Position.Y)
	if a.Sleeping {
		fmt.Fprint(c.out, ", sleeping")
	}
	if a.Dragging {
		fmt.Fprint(c.out, ", dragged")
	}
	if a.Caption != "" {
		fmt.Fprintf(c.out, " says %q", a.Caption)
	}
	fmt.Fprintln(c.out)
}

func (c *cli) spawnCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "spawn <species>",
		Short: "Add agents of a species",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.logf("POST /api/agents species=%s count=%d", args[0], count)
			raw, err := c.client.send(cmd.Context(), "POST", "/api/agents",
				map[string]interface{}{"species": args[0], "count": count})
			if err != nil {
				return err
			}
			return c.print(raw, func() error {
				var agents []agentView
				if count == 1 {
					var a agentView
					if err := json.Unmarshal(raw, &a); err != nil {
						return fmt.Errorf("parse agent: %w", err)
					}
					agents = append(agents, a)
				} else if err := json.Unmarshal(raw, &agents); err != nil {
					return fmt.Errorf("parse agents: %w", err)
				}
				for _, a := range agents {
					c.printAgent(a)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of agents to spawn")
	return cmd
}

func (c *cli) removeCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "remove [agent]",
		Short: "Remove an agent, or every agent with --all",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/agents"
			if !all {
				path += "/" + url.PathEscape(args[0])
			}
			c.logf("DELETE %s", path)
			raw, err := c.client.send(cmd.Context(), "DELETE", path, nil)
			if err != nil {
				return err
			}
			return c.print(raw, func() error {
				if all {
					var res struct {
						Removed int `json:"removed"`
					}
					if err := json.Unmarshal(raw, &res); err != nil {
						return fmt.Errorf("parse response: %w", err)
					}
					fmt.Fprintf(c.out, "Removed %d agents.\n", res.Removed)
					return nil
				}
				fmt.Fprintf(c.out, "Removed %s.\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "remove every agent")
	return cmd
}

func (c *cli) eventCmd() *cobra.Command {
	var on bool
	var x, y int
	cmd := &cobra.Command{
		Use:   "event <agent> <press|release|enter|leave|sleep|move|remove>",
		Short: "Send an input event to an agent",
		Long: `Send an input event to an agent.

Examples:
  herdctl event applejack press
  herdctl event applejack move --x 300 --y 200
  herdctl event applejack release
  herdctl event applejack sleep --on`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.sendEvent(cmd, args[0], map[string]interface{}{"type": args[1], "on": on, "x": x, "y": y})
		},
	}
	cmd.Flags().BoolVar(&on, "on", false, "sleep toggle state")
	cmd.Flags().IntVar(&x, "x", 0, "pointer x for move")
	cmd.Flags().IntVar(&y, "y", 0, "pointer y for move")
	return cmd
}

func (c *cli) sleepCmd(name, short string, on bool) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <agent>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.sendEvent(cmd, args[0], map[string]interface{}{"type": "sleep", "on": on})
		},
	}
}

func (c *cli) sendEvent(cmd *cobra.Command, ref string, body map[string]interface{}) error {
	id, err := c.resolve(cmd, ref)
	if err != nil {
		return err
	}
	path := "/api/agents/" + url.PathEscape(id) + "/events"
	c.logf("POST %s type=%v", path, body["type"])
	raw, err := c.client.send(cmd.Context(), "POST", path, body)
	if err != nil {
		return err
	}
	return c.print(raw, func() error {
		var a agentView
		if err := json.Unmarshal(raw, &a); err != nil || a.ID == "" {
			fmt.Fprintf(c.out, "Removed %s.\n", ref)
			return nil
		}
		c.printAgent(a)
		return nil
	})
}

// resolve maps a name to an agent id; ids pass through.
func (c *cli) resolve(cmd *cobra.Command, ref string) (string, error) {
	raw, err := c.client.get(cmd.Context(), "/api/agents/"+url.PathEscape(ref))
	if err != nil {
		return "", err
	}
	var a agentView
	if err := json.Unmarshal(raw, &a); err != nil {
		return "", fmt.Errorf("parse agent: %w", err)
	}
	return a.ID, nil
}

func (c *cli) commandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "command <input...>",
		Short: "Run a slash command on the server",
		Long: `Run a slash command on the server.

Examples:
  herdctl command /help
  herdctl command /spawn rarity 2
  herdctl command speech off`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.Join(args, " ")
			if !strings.HasPrefix(input, "/") {
				input = "/" + input
			}
			c.logf("POST /api/command %s", input)
			raw, err := c.client.send(cmd.Context(), "POST", "/api/command", map[string]string{"input": input})
			if err != nil {
				return err
			}
			return c.print(raw, func() error {
				var res struct {
					Content string `json:"content"`
				}
				if err := json.Unmarshal(raw, &res); err != nil {
					return fmt.Errorf("parse result: %w", err)
				}
				fmt.Fprintln(c.out, strings.TrimRight(res.Content, "\n"))
				return nil
			})
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the world status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := c.client.get(cmd.Context(), "/api/world/status")
			if err != nil {
				return err
			}
			return c.print(raw, func() error {
				var s struct {
					AgentCount int      `json:"agent_count"`
					Ticks      uint64   `json:"ticks"`
					Speed      float64  `json:"speed"`
					Renderers  int      `json:"renderers"`
					Adapters   []string `json:"adapters"`
					Screen     struct {
						Width  int `json:"width"`
						Height int `json:"height"`
					} `json:"screen"`
				}
				if err := json.Unmarshal(raw, &s); err != nil {
					return fmt.Errorf("parse status: %w", err)
				}
				fmt.Fprintf(c.out, "Agents:    %d\n", s.AgentCount)
				fmt.Fprintf(c.out, "Screen:    %dx%d\n", s.Screen.Width, s.Screen.Height)
				fmt.Fprintf(c.out, "Ticks:     %d (speed %.2gx)\n", s.Ticks, s.Speed)
				fmt.Fprintf(c.out, "Renderers: %d\n", s.Renderers)
				fmt.Fprintf(c.out, "Adapters:  %s\n", strings.Join(s.Adapters, ", "))
				return nil
			})
		},
	}
}
