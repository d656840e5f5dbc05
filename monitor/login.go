package monitor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
	"golang.org/x/term"

	"github.com/quailyquaily/telegate/account"
	"github.com/quailyquaily/telegate/internal/fsstore"
)

// Login runs the interactive phone/code sign-in flow and persists the
// session file for the account. The 2FA password comes from the resolved
// account when configured, otherwise it is prompted without echo.
func Login(ctx context.Context, acct account.Account, sessionPath string, in io.Reader, out io.Writer) error {
	if !acct.Configured() {
		return fmt.Errorf("monitor: account %s has no api credentials", acct.ID)
	}
	if err := fsstore.EnsureDir(dirOf(sessionPath), 0); err != nil {
		return err
	}

	client := telegram.NewClient(acct.APIID, acct.APIHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{Path: sessionPath},
		DCList:         dcs.Prod(),
	})

	reader := bufio.NewReader(in)
	return client.Run(ctx, func(runCtx context.Context) error {
		status, err := client.Auth().Status(runCtx)
		if err != nil {
			return err
		}
		if status.Authorized {
			fmt.Fprintf(out, "account %s is already linked\n", acct.ID)
			return nil
		}

		phone, err := prompt(reader, out, "Phone number (international format): ")
		if err != nil {
			return err
		}
		sent, err := client.Auth().SendCode(runCtx, phone, auth.SendCodeOptions{})
		if err != nil {
			return fmt.Errorf("send login code: %w", err)
		}
		sentCode, ok := sent.(*tg.AuthSentCode)
		if !ok {
			return fmt.Errorf("unexpected sent code type %T", sent)
		}

		code, err := prompt(reader, out, "Login code: ")
		if err != nil {
			return err
		}
		_, err = client.Auth().SignIn(runCtx, phone, code, sentCode.PhoneCodeHash)
		if errors.Is(err, auth.ErrPasswordAuthNeeded) {
			password := acct.Password
			if password == "" {
				password, err = promptPassword(out, "2FA password: ")
				if err != nil {
					return err
				}
			}
			if _, err = client.Auth().Password(runCtx, password); err != nil {
				return fmt.Errorf("2fa password: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("sign in: %w", err)
		}

		fmt.Fprintf(out, "account %s linked; session stored at %s\n", acct.ID, sessionPath)
		return nil
	})
}

func prompt(reader *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	reader := bufio.NewReader(os.Stdin)
	return prompt(reader, out, "")
}

func dirOf(path string) string {
	if i := strings.LastIndexByte(path, os.PathSeparator); i > 0 {
		return path[:i]
	}
	return "."
}
