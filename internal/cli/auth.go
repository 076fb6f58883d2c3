package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/Makepad-fr/syncprobe/internal/auth"
	"github.com/Makepad-fr/syncprobe/internal/ui"
)

func doAuth(opt Options, args []string) int {
	if len(args) != 1 && !(len(args) == 2 && args[0] == "login") {
		return usage("auth <login [key]|logout|status|whoami>")
	}
	switch args[0] {
	case "login":
		return doAuthLogin(opt, args[1:])
	case "logout":
		return doAuthLogout(opt)
	case "status":
		return doAuthStatus(opt)
	case "whoami":
		return doAuthWhoAmI(opt)
	}
	return usage("auth <login [key]|logout|status|whoami>")
}

func doAuthLogin(opt Options, args []string) int {
	var key string
	if len(args) == 1 {
		key = args[0]
	} else {
		var err error
		if key, err = readKey(opt); err != nil {
			ui.Fail("read key: " + err.Error())
			return exitFailure
		}
	}
	if err := opt.Auth.Set(key); err != nil {
		ui.Fail("save key: " + err.Error())
		return exitFailure
	}
	ui.OK("logged in")
	return exitOK
}

// readKey prompts without echo on a terminal and reads a plain line
// otherwise.
func readKey(opt Options) (string, error) {
	if f, ok := opt.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(ui.Stderr, "Paste your API key: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(ui.Stderr)
		return string(b), err
	}
	line, err := bufio.NewReader(opt.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func doAuthLogout(opt Options) int {
	ki, _ := opt.Auth.Get()
	if ki != nil && ki.Source == "env" {
		ui.OK("key is provided by " + auth.EnvKey + " (nothing to delete)")
		return exitOK
	}
	if err := opt.Auth.Delete(); err != nil {
		ui.Fail("logout: " + err.Error())
		return exitFailure
	}
	ui.OK("logged out")
	return exitOK
}

func doAuthStatus(opt Options) int {
	ki, err := opt.Auth.Get()
	if err != nil {
		ui.Fail("status: " + err.Error())
		return exitFailure
	}
	if ki == nil {
		fmt.Fprintln(ui.Stdout, "not logged in")
		fmt.Fprintln(ui.Stdout, "Run: syncprobe auth login")
		return exitOK
	}
	fmt.Fprintf(ui.Stdout, "source: %s\n", ki.Source)
	if ki.ExpiresAt != nil {
		state := ""
		if ki.ExpiresAt.Before(time.Now()) {
			state = " (expired)"
		}
		fmt.Fprintf(ui.Stdout, "expires: %s%s\n", ki.ExpiresAt.UTC().Format(time.RFC3339), state)
	} else {
		fmt.Fprintln(ui.Stdout, "expires: (unknown)")
	}
	fmt.Fprintln(ui.Stdout, "env override: "+auth.EnvKey)
	return exitOK
}

func doAuthWhoAmI(opt Options) int {
	ki, err := opt.Auth.Require()
	if err != nil {
		ui.Fail(err.Error())
		if errors.Is(err, auth.ErrNoKey) {
			return exitUsage
		}
		return exitFailure
	}
	payload, err := auth.JWTPayload(ki.Key)
	if err != nil {
		fmt.Fprintln(ui.Stdout, "Opaque key (cannot introspect locally).")
		fmt.Fprintln(ui.Stdout, "source:", ki.Source)
		return exitOK
	}
	fmt.Fprintln(ui.Stdout, "JWT payload:")
	fmt.Fprintln(ui.Stdout, payload)
	return exitOK
}
