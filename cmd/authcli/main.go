package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/term"

	"github.com/dtroode/authkeeper-server/internal/client"
	"github.com/dtroode/authkeeper-server/internal/logger"
)

const usage = `usage: authcli [-server URL] [-session FILE] <command>

commands:
  login [username]   sign in and store the session
  whoami             show the signed-in user
  refresh [-rotate]  renew the access token, or both tokens with -rotate
  logout             end this session
  logout-all         end every session of the signed-in user
`

type cliConfig struct {
	ServerURL   string `env:"AUTHKEEPER_URL" envDefault:"http://localhost:8080/api"`
	SessionFile string `env:"AUTHKEEPER_SESSION_FILE"`
	LogLevel    int    `env:"LOG_LEVEL" envDefault:"4"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type app struct {
	client *client.Client
	guard  *client.Guard
	in     *bufio.Reader
	out    io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(stderr, "failed to parse environment: %v\n", err)
		return 2
	}

	fs := flag.NewFlagSet("authcli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "API base URL")
	fs.StringVar(&cfg.SessionFile, "session", cfg.SessionFile, "session file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	if cfg.SessionFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			fmt.Fprintf(stderr, "failed to locate config dir: %v\n", err)
			return 1
		}
		cfg.SessionFile = filepath.Join(dir, "authkeeper", "session.json")
	}

	lg := logger.NewWithWriter(stderr, cfg.LogLevel)
	c := client.New(cfg.ServerURL, client.NewFileStore(cfg.SessionFile))
	a := &app{
		client: c,
		guard:  client.NewGuard(c.Store(), c, lg),
		in:     bufio.NewReader(stdin),
		out:    stdout,
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	var err error
	switch cmd {
	case "login":
		err = a.login(ctx, rest, stdin)
	case "whoami":
		err = a.whoami(ctx)
	case "refresh":
		err = a.refresh(ctx, rest, stderr)
	case "logout":
		err = a.logout(ctx)
	case "logout-all":
		err = a.logoutAll(ctx)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}

	if err != nil {
		fmt.Fprintf(stderr, "authcli %s: %v\n", cmd, err)
		return 1
	}
	return 0
}

var errNotLoggedIn = errors.New("not logged in, run authcli login")

func (a *app) login(ctx context.Context, args []string, stdin io.Reader) error {
	if d := a.guard.CheckGuest(ctx); d.Action == client.ActionRedirectHome {
		fmt.Fprintln(a.out, "Already logged in. Run authcli logout first.")
		return nil
	}

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Fprint(a.out, "Username: ")
		line, err := a.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}

	password, err := a.password(stdin)
	if err != nil {
		return err
	}

	user, err := a.client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", user.Username, user.Role)
	return nil
}

// password reads without echo from a terminal and falls back to a plain
// line for piped input.
func (a *app) password(stdin io.Reader) (string, error) {
	fmt.Fprint(a.out, "Password: ")
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprintln(a.out)
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) whoami(ctx context.Context) error {
	if d := a.guard.Check(ctx); d.Action != client.ActionProceed {
		return errNotLoggedIn
	}

	user, err := a.client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\t%s\n", user.Username, user.Role, user.ID)
	return nil
}

func (a *app) refresh(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rotate := fs.Bool("rotate", false, "replace the refresh token as well")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.client.Refresh(ctx, *rotate); err != nil {
		if client.IsRevoked(err) {
			return fmt.Errorf("session revoked, run authcli login: %w", err)
		}
		return err
	}

	if *rotate {
		fmt.Fprintln(a.out, "Tokens refreshed")
	} else {
		fmt.Fprintln(a.out, "Access token refreshed")
	}
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *app) logoutAll(ctx context.Context) error {
	if d := a.guard.Check(ctx); d.Action != client.ActionProceed {
		return errNotLoggedIn
	}

	n, err := a.client.RevokeAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Revoked %d session(s)\n", n)
	return nil
}
