// rescuelog 터미널 클라이언트
//
// 사용법:
//
//	rescuelog signup -name "Test User" -phone 0550000000 [-email a@b.c] [-remember]
//	rescuelog login -phone 0550000000 [-remember]
//	rescuelog logout | refresh | resume | status
//	rescuelog get /api/user/profile
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rescuelog/backend/internal/client"
	"github.com/rescuelog/backend/internal/config"
	"github.com/rescuelog/backend/internal/logging"
	"github.com/rescuelog/backend/internal/session"
	"golang.org/x/term"
)

type app struct {
	auth    *client.AuthClient
	session *session.Manager
	fetcher *client.Fetcher
	in      *bufio.Reader
	out     io.Writer
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, err := session.LoadOrCreateDeviceKey(cfg.KeyPath)
	if err != nil {
		logger.Error("device key", slog.Any("error", err))
		os.Exit(1)
	}
	store, err := session.OpenSQLiteStore(ctx, cfg.StorePath, key)
	if err != nil {
		logger.Error("open session store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	auth := client.NewAuthClient(cfg, nil)
	mgr := session.NewManager(store, auth, logger)
	if err := mgr.Load(ctx); err != nil {
		logger.Error("load session", slog.Any("error", err))
		os.Exit(1)
	}

	a := &app{
		auth:    auth,
		session: mgr,
		fetcher: client.NewFetcher(auth.BaseURL(), nil, mgr),
		in:      bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}
	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, client.UserMessage(err, err.Error()))
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: rescuelog <signup|login|logout|refresh|resume|status|get> [flags]")
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "signup":
		return a.signup(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "refresh":
		if err := a.session.Refresh(ctx); err != nil {
			if errors.Is(err, session.ErrNoRefreshToken) {
				fmt.Fprintln(a.out, "not signed in")
				return nil
			}
			return err
		}
		fmt.Fprintln(a.out, "access token refreshed")
		return nil
	case "resume":
		ok, err := a.session.Resume(ctx, a.confirmPresence)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintln(a.out, "session resumed")
		} else {
			fmt.Fprintln(a.out, "nothing to resume")
		}
		return nil
	case "status":
		remember, err := a.session.RememberMe(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "signed in: %t, remember me: %t\n", a.session.IsAuthenticated(), remember)
		return nil
	case "get":
		if len(args) != 1 {
			return errors.New("usage: rescuelog get <path>")
		}
		var body map[string]any
		if err := a.fetcher.Get(ctx, args[0], &body); err != nil {
			return err
		}
		for k, v := range body {
			fmt.Fprintf(a.out, "%s: %v\n", k, v)
		}
		return nil
	default:
		usage(a.out)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	name := fs.String("name", "", "full name")
	phone := fs.String("phone", "", "phone number")
	email := fs.String("email", "", "email (optional)")
	remember := fs.Bool("remember", false, "remember this device")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := a.readSecret("Password: ")
	if err != nil {
		return err
	}
	confirm, err := a.readSecret("Confirm password: ")
	if err != nil {
		return err
	}

	resp, err := a.auth.Signup(ctx, client.SignupForm{
		FullName:        *name,
		Phone:           *phone,
		Email:           *email,
		Password:        password,
		ConfirmPassword: confirm,
	})
	if err != nil {
		return err
	}
	if err := a.session.Login(ctx, resp.AccessToken, resp.RefreshToken, *remember); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "welcome, %s\n", resp.User.FullName)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	phone := fs.String("phone", "", "phone number")
	remember := fs.Bool("remember", false, "remember this device")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := a.readSecret("Password: ")
	if err != nil {
		return err
	}

	resp, err := a.auth.Login(ctx, client.LoginForm{Phone: *phone, Password: password})
	if err != nil {
		return err
	}
	if err := a.session.Login(ctx, resp.AccessToken, resp.RefreshToken, *remember); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s (%s)\n", resp.User.FullName, resp.User.Role)
	return nil
}

// logout always clears local state, even when the server cannot be reached.
func (a *app) logout(ctx context.Context) error {
	if token := a.session.AccessToken(); token != "" {
		if err := a.auth.Logout(ctx, token); err != nil {
			fmt.Fprintln(os.Stderr, "server logout failed:", client.UserMessage(err, err.Error()))
		}
	}
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func (a *app) confirmPresence(ctx context.Context) (bool, error) {
	fmt.Fprint(a.out, "Authenticate to continue [y/N]: ")
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func (a *app) readSecret(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(a.out)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
