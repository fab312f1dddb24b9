// Package interactive provides the interactive command-line interface
// for hap-sim.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/hapkit/hap-go/pkg/clock"
	"github.com/hapkit/hap-go/pkg/hap"
	"github.com/hapkit/hap-go/pkg/homekit"
	"github.com/hapkit/hap-go/pkg/netsim"
)

// Env is the simulated environment the shell operates on.
type Env struct {
	HomeKit *homekit.Controller
	Clock   *clock.Virtual
	Network *netsim.Simulator

	// CachePath is the default target of the save command.
	CachePath string

	// Advertiser, when set, is refreshed after pairing changes.
	Advertiser *homekit.Advertiser
}

// Sim handles interactive mode for hap-sim.
type Sim struct {
	env  Env
	out  io.Writer
	rl   *readline.Instance
	subs []*subscription

	// tick is the real-time interval between virtual clock steps while a
	// command waits on simulated latency or timeouts.
	tick time.Duration
}

type subscription struct {
	id    int
	label string
	sub   *hap.Subscription
}

// New creates a shell writing to out. Use Run for a readline session.
func New(env Env, out io.Writer) *Sim {
	return &Sim{env: env, out: out, tick: time.Millisecond}
}

// Stdout returns a writer that coordinates with the readline prompt once
// Run has started, and the plain output before.
func (s *Sim) Stdout() io.Writer {
	if s.rl != nil {
		return s.rl.Stdout()
	}
	return s.out
}

// Run starts the interactive command loop.
func (s *Sim) Run(ctx context.Context, cancel context.CancelFunc) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "hap> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	s.rl = rl
	s.out = rl.Stdout()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return nil
		}

		if !s.Exec(ctx, line) {
			cancel()
			return nil
		}
	}
}

// Exec runs one command line. It returns false when the shell should exit.
func (s *Sim) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "ls", "list":
		s.cmdList()
	case "info":
		s.cmdInfo()
	case "get", "g":
		s.cmdGet(ctx, args)
	case "set", "s":
		s.cmdSet(ctx, args, false)
	case "update", "u":
		s.cmdSet(ctx, args, true)
	case "sub":
		s.cmdSub(args)
	case "unsub":
		s.cmdUnsub(args)
	case "wait", "w":
		s.cmdWait(ctx, args)
	case "history":
		s.cmdHistory(args)
	case "advance", "adv":
		s.cmdAdvance(args)
	case "net":
		s.cmdNet(args)
	case "pair":
		s.cmdPair(true)
	case "unpair":
		s.cmdPair(false)
	case "refresh":
		s.cmdRefresh(ctx)
	case "save":
		s.cmdSave(args)
	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return false
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Sim) printHelp() {
	fmt.Fprintln(s.out, `
hap-sim Commands:
  Inspection:
    ls                                  - List accessories, services and values
    info                                - Show bridge identity and TXT records
    get <acc> <service> <char>          - Read a value as a controller
    refresh                             - Read every readable value

  Control:
    set <acc> <service> <char> <value>  - Write a value as a controller
    update <acc> <service> <char> <val> - Push a value from the accessory side
    sub <acc> <service> <char>          - Subscribe to change events
    unsub <id>                          - Cancel a subscription
    wait <id> [timeout]                 - Wait for the next event (default 1s)
    history <id>                        - Show events received so far

  Simulation:
    advance <duration>                  - Advance virtual time (e.g. 500ms)
    net                                 - Show network conditions
    net latency <duration>              - Set latency
    net loss <0..1>                     - Set packet loss probability
    net down | up | reset               - Disconnect, reconnect, restore
    pair | unpair                       - Change pairing state

  General:
    save [path]                         - Save the accessory cache
    help                                - Show this help
    quit                                - Exit

  <acc> is a UUID, UUID prefix or display name; <service> is a type with an
  optional /subtype, e.g. Lightbulb/night.`)
}

// drive runs op while stepping the virtual clock to each due timer, so
// simulated latency and wait timeouts elapse without an explicit advance.
func (s *Sim) drive(op func() error) error {
	done := make(chan error, 1)
	go func() { done <- op() }()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			return err
		case <-ticker.C:
			if next, ok := s.env.Clock.NextDeadline(); ok {
				s.env.Clock.AdvanceTo(next)
			}
		}
	}
}
