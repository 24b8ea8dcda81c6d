package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Veraticus/receipt-flow/internal/agent"
	"github.com/Veraticus/receipt-flow/internal/cli"
)

// shell runs line commands against one agent so sessions survive between uploads.
type shell struct {
	agent  *agent.Agent
	in     io.Reader
	out    io.Writer
	userID string
}

func runShell(ctx context.Context, sh *shell) {
	prompter := cli.NewPrompter(sh.in, sh.out)
	for {
		line, err := prompter.Ask(ctx, "receipts")
		if err != nil {
			if !errors.Is(err, cli.ErrInputCancelled) && !errors.Is(err, io.EOF) {
				slog.Warn("Failed to read command", "error", err)
			}
			return
		}
		if line == "" {
			continue
		}
		if err := sh.exec(ctx, strings.Fields(line)); err != nil {
			fmt.Fprintln(sh.out, cli.FormatError(err.Error()))
		}
	}
}

func (sh *shell) exec(ctx context.Context, args []string) error {
	switch args[0] {
	case "upload":
		if len(args) < 2 {
			return errors.New("usage: upload PATH [NOTE...]")
		}
		sess, err := sh.agent.Upload(ctx, sh.userID, args[1], strings.Join(args[2:], " "), "")
		if err != nil {
			return err
		}
		renderSession(sh.out, sess)
	case "confirm", "cancel":
		if len(args) != 2 {
			return fmt.Errorf("usage: %s SESSION", args[0])
		}
		var err error
		if args[0] == "confirm" {
			_, err = sh.agent.Confirm(ctx, args[1], nil)
		} else {
			_, err = sh.agent.Cancel(ctx, args[1])
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, cli.FormatSuccess(args[0]+" "+args[1]))
	case "sessions":
		w := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			cli.TableHeaderStyle.Render("Session"),
			cli.TableHeaderStyle.Render("State"),
			cli.TableHeaderStyle.Render("Document"),
			cli.TableHeaderStyle.Render("Updated"))
		for _, s := range sh.agent.Sessions().UserSessions(sh.userID, false) {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.State, s.DocumentID(), s.UpdatedAt.Format(time.DateTime))
		}
		return w.Flush()
	case "stats":
		stats := sh.agent.Sessions().Stats()
		fmt.Fprintln(sh.out, cli.FormatField("total", fmt.Sprint(stats.Total)))
		fmt.Fprintln(sh.out, cli.FormatField("active", fmt.Sprint(stats.Active)))
		for state, n := range stats.ByState {
			fmt.Fprintln(sh.out, cli.FormatField(string(state), fmt.Sprint(n)))
		}
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}
