package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/danmuck/reguctl/internal/center"
	"github.com/danmuck/reguctl/internal/une"
)

var (
	// ErrNavigateBack signals caller-intent to return to the previous menu.
	ErrNavigateBack = errors.New("navigate back")
	// ErrNavigateExit signals caller-intent to exit the console.
	ErrNavigateExit = errors.New("navigate exit")
)

// targetsFile persists regulator targets configured for the console.
type targetsFile struct {
	ClearScreenAfterCommand bool           `toml:"clear_screen_after_command"`
	Targets                 []targetConfig `toml:"targets"`
}

// targetConfig binds a display name to a regulator telecontrol endpoint.
type targetConfig struct {
	Name string `toml:"name"`
	Addr string `toml:"addr"`
}

// App drives the interactive console over a persisted targets file.
type App struct {
	reader  *bufio.Reader
	cfgPath string
	cfg     targetsFile
	active  int
}

// ConsoleCmd returns the interactive console command.
func ConsoleCmd() *cobra.Command {
	var targetsPath string

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Drive regulators from an interactive menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := NewApp(targetsPath)
			return app.Run()
		},
	}
	cmd.Flags().StringVar(&targetsPath, "targets", "centerctl.toml", "persisted targets file")
	return cmd
}

func NewApp(cfgPath string) *App {
	return &App{
		reader:  bufio.NewReader(os.Stdin),
		cfgPath: cfgPath,
		active:  0,
	}
}

// Run executes the main interactive menu loop.
func (a *App) Run() error {
	if err := a.loadOrInitConfig(); err != nil {
		return err
	}

	for {
		a.printMainMenu()
		choice, err := a.promptInt("Choose", 1, 10, false, true)
		if err != nil {
			if errors.Is(err, ErrNavigateExit) {
				return a.exitConsole()
			}
			return err
		}
		a.clearIfEnabled()
		switch choice {
		case 1:
			a.listTargets()
		case 2:
			if err := a.addTarget(); err != nil {
				a.printError(err)
			}
		case 3:
			if err := a.selectActiveTarget(); err != nil {
				if errors.Is(err, ErrNavigateBack) {
					continue
				}
				if errors.Is(err, ErrNavigateExit) {
					return a.exitConsole()
				}
				a.printError(err)
			}
		case 4:
			if err := a.removeTarget(); err != nil {
				if errors.Is(err, ErrNavigateBack) {
					continue
				}
				if errors.Is(err, ErrNavigateExit) {
					return a.exitConsole()
				}
				a.printError(err)
			}
		case 5:
			if err := a.pollStatusSummary(); err != nil {
				a.printError(err)
			}
		case 6:
			if err := a.selectPlan(); err != nil {
				if errors.Is(err, ErrNavigateBack) {
					continue
				}
				a.printError(err)
			}
		case 7:
			if err := a.setStates(); err != nil {
				if errors.Is(err, ErrNavigateBack) {
					continue
				}
				a.printError(err)
			}
		case 8:
			if err := a.syncClock(); err != nil {
				a.printError(err)
			}
		case 9:
			if err := a.watchLive(); err != nil {
				if errors.Is(err, ErrNavigateBack) {
					continue
				}
				a.printError(err)
			}
		case 10:
			return a.exitConsole()
		}
	}
}

// exitConsole saves the targets file before leaving.
func (a *App) exitConsole() error {
	if err := a.saveConfig(); err != nil {
		a.printError(fmt.Errorf("save on exit: %w", err))
	}
	fmt.Println("bye")
	return nil
}

// loadOrInitConfig loads the persisted file and seeds a local target
// when none is configured yet.
func (a *App) loadOrInitConfig() error {
	if err := ensureFile(a.cfgPath); err != nil {
		return err
	}
	if _, err := toml.DecodeFile(a.cfgPath, &a.cfg); err != nil {
		return fmt.Errorf("load targets: %w", err)
	}
	if len(a.cfg.Targets) == 0 {
		a.cfg.Targets = append(a.cfg.Targets, targetConfig{
			Name: "local",
			Addr: "127.0.0.1:19000",
		})
		if err := a.saveConfig(); err != nil {
			return err
		}
	}
	if a.active >= len(a.cfg.Targets) {
		a.active = 0
	}
	return nil
}

func (a *App) saveConfig() error {
	buf := strings.Builder{}
	if err := toml.NewEncoder(&buf).Encode(a.cfg); err != nil {
		return err
	}
	return os.WriteFile(a.cfgPath, []byte(buf.String()), 0o644)
}

func (a *App) printMainMenu() {
	target := a.cfg.Targets[a.active]
	fmt.Println()
	fmt.Println("Center Console")
	fmt.Printf("  targets file: %s (targets=%d)\n", a.cfgPath, len(a.cfg.Targets))
	fmt.Printf("  active: %s (%s)\n", target.Name, target.Addr)
	fmt.Println("  1) List targets")
	fmt.Println("  2) Add target (persist)")
	fmt.Println("  3) Select active target")
	fmt.Println("  4) Remove target")
	fmt.Println("  5) Poll status summary")
	fmt.Println("  6) Select plan")
	fmt.Println("  7) Set representation and mode")
	fmt.Println("  8) Sync regulator clock")
	fmt.Println("  9) Watch live reports")
	fmt.Println("  10) Exit")
}

func (a *App) printError(err error) {
	fmt.Printf("%s %v\n", color.New(color.FgRed).Sprint("error:"), err)
}

func (a *App) listTargets() {
	for i, t := range a.cfg.Targets {
		marker := ""
		if i == a.active {
			marker = color.New(color.FgHiMagenta).Sprint(" ←")
		}
		fmt.Printf("  %d) %s (%s)%s\n", i+1, t.Name, t.Addr, marker)
	}
}

func (a *App) addTarget() error {
	name, err := a.promptLine("Name")
	if err != nil {
		return err
	}
	addr, err := a.promptLine("Addr (host:port)")
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	addr = strings.TrimSpace(addr)
	if name == "" || addr == "" {
		return fmt.Errorf("name and addr are required")
	}
	a.cfg.Targets = append(a.cfg.Targets, targetConfig{Name: name, Addr: addr})
	if err := a.saveConfig(); err != nil {
		return err
	}
	fmt.Printf("added %s (%s)\n", name, addr)
	return nil
}

func (a *App) selectActiveTarget() error {
	a.listTargets()
	choice, err := a.promptInt("Target", 1, len(a.cfg.Targets), true, false)
	if err != nil {
		return err
	}
	a.active = choice - 1
	return nil
}

func (a *App) removeTarget() error {
	if len(a.cfg.Targets) == 1 {
		return fmt.Errorf("cannot remove the last target")
	}
	a.listTargets()
	choice, err := a.promptInt("Remove", 1, len(a.cfg.Targets), true, false)
	if err != nil {
		return err
	}
	idx := choice - 1
	a.cfg.Targets = append(a.cfg.Targets[:idx], a.cfg.Targets[idx+1:]...)
	if a.active >= len(a.cfg.Targets) {
		a.active = len(a.cfg.Targets) - 1
	}
	return a.saveConfig()
}

// withActiveClient dials the active target for one exchange.
func (a *App) withActiveClient(run func(ctx context.Context, c *center.Client) error) error {
	return withClient(a.cfg.Targets[a.active].Addr, run)
}

func (a *App) pollStatusSummary() error {
	return a.withActiveClient(func(ctx context.Context, c *center.Client) error {
		sync, err := c.PollSync(ctx)
		if err != nil {
			return err
		}
		traffic, err := c.PollTraffic(ctx)
		if err != nil {
			return err
		}
		alarms, err := c.PollAlarms(ctx)
		if err != nil {
			return err
		}
		codes, err := c.QueryDirect(ctx)
		if err != nil {
			return err
		}
		fmt.Println(renderSync(sync))
		fmt.Println(renderTraffic(traffic))
		fmt.Println(renderAlarms(alarms))
		fmt.Println(renderDirectState(codes))
		return nil
	})
}

func (a *App) selectPlan() error {
	external, err := a.promptInt("Plan", 1, 127, true, false)
	if err != nil {
		return err
	}
	return a.withActiveClient(func(ctx context.Context, c *center.Client) error {
		if err := c.SelectPlan(ctx, external); err != nil {
			if errors.Is(err, center.ErrRejected) {
				return fmt.Errorf("regulator rejected plan %d", external)
			}
			return err
		}
		fmt.Printf("plan %d confirmed\n", external)
		return nil
	})
}

func (a *App) setStates() error {
	fmt.Println("  1) central color")
	fmt.Println("  2) central blink")
	fmt.Println("  3) central off")
	fmt.Println("  4) local")
	choice, err := a.promptInt("State", 1, 4, true, false)
	if err != nil {
		return err
	}
	var repr byte = 2
	central := true
	switch choice {
	case 2:
		repr = 1
	case 3:
		repr = 0
	case 4:
		central = false
	}
	return a.withActiveClient(func(ctx context.Context, c *center.Client) error {
		if err := c.SetStates(ctx, repr, central); err != nil {
			return err
		}
		fmt.Println("state order confirmed")
		return nil
	})
}

func (a *App) syncClock() error {
	return a.withActiveClient(func(ctx context.Context, c *center.Client) error {
		now := time.Now()
		if err := c.SetTime(ctx, now); err != nil {
			return err
		}
		fmt.Printf("clock set to %s\n", now.Format("15:04:05"))
		return nil
	})
}

// watchLive renders reports from the active target for a bounded time.
func (a *App) watchLive() error {
	seconds, err := a.promptInt("Seconds", 5, 600, true, false)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(seconds)*time.Second)
	defer cancel()

	cfg := center.DefaultConfig()
	cfg.Addr = a.cfg.Targets[a.active].Addr

	w := &center.Watcher{Cfg: cfg}
	w.OnConnect = func(c *center.Client) {
		fmt.Printf("%s connected to %s\n", time.Now().Format("15:04:05"), c.RemoteAddr())
	}
	w.OnFrame = func(f une.Frame) {
		fmt.Printf("%s %s\n", time.Now().Format("15:04:05"), renderFrame(f, false))
	}

	if err := w.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func (a *App) promptLine(label string) (string, error) {
	if label != "" {
		fmt.Printf("%s: ", label)
	}
	line, err := a.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *App) promptInt(label string, min int, max int, allowBack bool, allowExit bool) (int, error) {
	for {
		rangePrompt := fmt.Sprintf("%s [%d-%d", label, min, max)
		if allowBack {
			rangePrompt += "|back|b"
		}
		if allowExit {
			rangePrompt += "|exit|e"
		}
		rangePrompt += "]"
		line, err := a.promptLine(rangePrompt)
		if err != nil {
			return 0, err
		}
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if allowBack && (trimmed == "back" || trimmed == "b") {
			return 0, ErrNavigateBack
		}
		if allowExit && (trimmed == "exit" || trimmed == "e") {
			return 0, ErrNavigateExit
		}
		v, err := strconv.Atoi(trimmed)
		if err != nil || v < min || v > max {
			fmt.Println("Invalid selection.")
			continue
		}
		return v, nil
	}
}

func (a *App) clearIfEnabled() {
	if !a.cfg.ClearScreenAfterCommand {
		return
	}
	fmt.Print("\033[H\033[2J")
}

// ensureFile creates a missing file and parent directory for config
// bootstrapping.
func ensureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
