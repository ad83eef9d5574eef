package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chepyr/magna-todo/internal/config"
	"github.com/chepyr/magna-todo/internal/logger"
	"github.com/chepyr/magna-todo/internal/remote"
	"github.com/chepyr/magna-todo/internal/store"
	"github.com/chepyr/magna-todo/shared/models"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type app struct {
	in  io.Reader
	out io.Writer

	apiURL   string
	mode     string
	logLevel string

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out, log: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "todo",
		Short: "Todo list client",
		Long: `todo manages the todo collection served by todos-service.

The shell command keeps one session open, and with --offline holds the
whole list in memory.`,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&a.apiURL, "api", "", "todos-service base URL (default $TODO_API_URL)")
	rootCmd.PersistentFlags().StringVar(&a.mode, "mode", "", "dev or prod (default $MODE)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "zerolog level (default $LOG_LEVEL)")

	rootCmd.AddCommand(a.listCmd())
	rootCmd.AddCommand(a.addCmd())
	rootCmd.AddCommand(a.doneCmd())
	rootCmd.AddCommand(a.editCmd())
	rootCmd.AddCommand(a.rmCmd())
	rootCmd.AddCommand(a.watchCmd())
	rootCmd.AddCommand(a.shellCmd())
	return rootCmd
}

// flags win over the environment
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.mode != "" {
		cfg.Mode = a.mode
		if os.Getenv("TICKET_URL") == "" {
			cfg.TicketURL = config.TicketEndpoint(a.mode)
		}
	}
	if a.apiURL != "" {
		cfg.APIBaseURL = strings.TrimRight(a.apiURL, "/")
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.log = logger.New(cfg.Mode, cfg.LogLevel)
	return nil
}

// networked builds a store against the configured service and loads the
// collection once.
func (a *app) networked(ctx context.Context, opts ...store.Option) (*store.Store, error) {
	client := remote.NewClient(a.cfg.APIBaseURL)
	opts = append([]store.Option{store.WithLogger(a.log)}, opts...)
	s := store.NewNetworked(client, opts...)
	if _, res := s.ListTasks(ctx); !res.OK() {
		return nil, fmt.Errorf("load todos from %s: %w", client.BaseURL(), resultErr(res))
	}
	return s, nil
}

func resultErr(res store.Result) error {
	if res.OK() {
		return nil
	}
	if res.Err == nil {
		return errors.New(string(res.Reason))
	}
	return fmt.Errorf("%s: %w", res.Reason, res.Err)
}

// resolveID accepts a full id or a unique prefix of one.
func resolveID(tasks []models.Task, arg string) (string, error) {
	for _, t := range tasks {
		if t.ID == arg {
			return t.ID, nil
		}
	}
	var match string
	for _, t := range tasks {
		if strings.HasPrefix(t.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", arg)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no todo matches %q", arg)
	}
	return match, nil
}
