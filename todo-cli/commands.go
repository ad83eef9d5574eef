package main

import (
	"errors"
	"fmt"

	"github.com/chepyr/magna-todo/internal/attachments"
	"github.com/chepyr/magna-todo/internal/config"
	"github.com/chepyr/magna-todo/internal/remote"
	"github.com/chepyr/magna-todo/internal/store"
	"github.com/chepyr/magna-todo/shared/models"
	"github.com/spf13/cobra"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List todos, oldest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.networked(cmd.Context())
			if err != nil {
				return err
			}
			printTasks(a.out, s.Tasks())
			return nil
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a todo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			content, _ := cmd.Flags().GetString("content")
			paths, _ := cmd.Flags().GetStringSlice("image")

			s, err := a.networked(cmd.Context())
			if err != nil {
				return err
			}
			if err := attachPaths(cmd, s, paths); err != nil {
				return err
			}

			task, res := s.CreateTask(cmd.Context(), title, content)
			if !res.OK() {
				return resultErr(res)
			}
			fmt.Fprintf(a.out, "created %s (%d images)\n", task.ID, len(task.Images))
			return nil
		},
	}
	cmd.Flags().StringP("title", "t", "", "Todo title")
	cmd.Flags().StringP("content", "c", "", "Todo content")
	cmd.Flags().StringSliceP("image", "i", nil, "Image file to attach (gif, jpeg or png), repeatable")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("content")
	return cmd
}

// attachPaths selects the files at paths. Rejected or unreadable files are
// reported and skipped, the rest stay pending.
func attachPaths(cmd *cobra.Command, s *store.Store, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	files := make([]attachments.File, 0, len(paths))
	for _, p := range paths {
		f, err := attachments.FromPath(p)
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	if res := s.SelectFiles(cmd.Context(), files); !res.OK() {
		if res.Reason != store.ReasonValidation && !errors.Is(res.Err, store.ErrUnreadable) {
			return resultErr(res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "warning: %v\n", res.Err)
	}
	return nil
}

func (a *app) doneCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "done <id>",
		Aliases: []string{"toggle"},
		Short:   "Toggle a todo between open and done",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.networked(cmd.Context())
			if err != nil {
				return err
			}
			id, err := resolveID(s.Tasks(), args[0])
			if err != nil {
				return err
			}
			if res := s.ToggleTaskStatus(cmd.Context(), id); !res.OK() {
				return resultErr(res)
			}
			fmt.Fprintf(a.out, "%s is now %s\n", id, statusOf(s.Tasks(), id))
			return nil
		},
	}
}

func (a *app) editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a todo's title or content and reopen it",
		Long: `edit replaces the title and/or content of a todo. A flag left out keeps
the current value. Saving an edit always sets the todo back to open.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			content, _ := cmd.Flags().GetString("content")

			s, err := a.networked(cmd.Context())
			if err != nil {
				return err
			}
			id, err := resolveID(s.Tasks(), args[0])
			if err != nil {
				return err
			}
			if res := s.OpenEdit(id); !res.OK() {
				return resultErr(res)
			}
			s.SetDraftTitle(title)
			s.SetDraftContent(content)
			if res := s.SaveEdit(cmd.Context()); !res.OK() {
				return resultErr(res)
			}
			fmt.Fprintf(a.out, "updated %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringP("title", "t", "", "New title")
	cmd.Flags().StringP("content", "c", "", "New content")
	return cmd
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Delete a todo",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.networked(cmd.Context())
			if err != nil {
				return err
			}
			id, err := resolveID(s.Tasks(), args[0])
			if err != nil {
				return err
			}
			if res := s.RemoveTask(cmd.Context(), id); !res.OK() {
				return resultErr(res)
			}
			fmt.Fprintf(a.out, "removed %s\n", id)
			return nil
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the list again every time another client changes it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.networked(ctx, store.WithOnRefresh(func(tasks []models.Task) {
				fmt.Fprintln(a.out)
				printTasks(a.out, tasks)
			}))
			if err != nil {
				return err
			}
			err = s.Follow(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

func (a *app) shellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive session over one todo store",
		Long: `shell reads commands from stdin against a single store. With --offline
the list lives in memory only and every created todo is posted as a
support ticket, unless --no-ticket is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			offline, _ := cmd.Flags().GetBool("offline")
			noTicket, _ := cmd.Flags().GetBool("no-ticket")

			var s *store.Store
			if offline {
				opts := []store.Option{store.WithLogger(a.log)}
				if !noTicket {
					opts = append(opts, store.WithTicketSender(remote.NewTicketClient(a.cfg.TicketURL)))
					fmt.Fprintf(a.out, "tickets go to %s\n", a.cfg.TicketURL)
				}
				s = store.NewOffline(attachments.NewObjectURLs(originFor(a.cfg)), opts...)
			} else {
				var err error
				s, err = a.networked(cmd.Context())
				if err != nil {
					return err
				}
			}
			return newShell(s, a.in, a.out).run(cmd.Context())
		},
	}
	cmd.Flags().Bool("offline", false, "Keep the list in memory instead of using todos-service")
	cmd.Flags().Bool("no-ticket", false, "With --offline, do not post created todos as tickets")
	return cmd
}

func originFor(cfg *config.Config) string {
	if cfg.Mode == "dev" {
		return "http://localhost:3000"
	}
	return cfg.APIBaseURL
}

func statusOf(tasks []models.Task, id string) models.TaskStatus {
	for _, t := range tasks {
		if t.ID == id {
			return t.Status
		}
	}
	return ""
}
