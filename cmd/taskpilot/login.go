package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/copyleftdev/taskpilot/internal/auth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [url]",
		Short: "Log in by hand in a visible browser and save the session state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()
			a.cfg.Browser.Headless = false

			sessions, _, err := a.startEngine()
			if err != nil {
				return err
			}
			defer a.shutdownEngine(sessions)

			bctx, page, err := sessions.OpenPage()
			if err != nil {
				return err
			}
			defer bctx.Close()

			if len(args) == 1 {
				if _, err := page.Goto(args[0]); err != nil {
					return fmt.Errorf("navigate to %s: %w", args[0], err)
				}
			}

			out := cmd.OutOrStdout()
			if a.cfg.Auth.TOTPSecret != "" {
				if code, err := auth.GenerateTOTP(a.cfg.Auth.TOTPSecret); err != nil {
					a.logger.Warn("Cannot generate TOTP code", zap.Error(err))
				} else {
					fmt.Fprintf(out, "Current TOTP code: %s\n", code)
				}
			}
			fmt.Fprintln(out, "Complete the login in the browser, then press Enter to save the session.")

			entered := make(chan struct{})
			go func() {
				waitForEnter(cmd.InOrStdin())
				close(entered)
			}()
			select {
			case <-entered:
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}

			sessions.SaveState(bctx)
			fmt.Fprintf(out, "Session state written to %s\n", sessions.StoragePath())
			return nil
		},
	}
}

func waitForEnter(r io.Reader) {
	_, _ = bufio.NewReader(r).ReadString('\n')
}
