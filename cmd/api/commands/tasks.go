package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmaster/tracker/internal/client"
	"github.com/taskmaster/tracker/internal/client/dashboard"
	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

func newTasksCommand(opts *clientOptions) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "List and change tasks",
	}
	tasksCmd.AddCommand(
		newTasksListCommand(opts),
		newTasksShowCommand(opts),
		newTasksAddCommand(opts),
		newTasksUpdateCommand(opts),
		newTasksDeleteCommand(opts),
		newTasksProgressCommand(opts),
		newTasksTimeCommand(opts),
		newTasksDailyCommand(opts),
	)
	return tasksCmd
}

func newTasksListCommand(opts *clientOptions) *cobra.Command {
	var (
		query  client.ListQuery
		status string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				query.Status = strings.Split(status, ",")
			}
			return runClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				var list *client.TaskList
				err := env.authed(ctx, func() error {
					var err error
					list, err = env.api.ListTasks(ctx, query)
					return err
				})
				if err != nil {
					return err
				}
				return printTasks(cmd.OutOrStdout(), list.Tasks, list.Total)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Comma separated statuses (pending, in-progress, completed)")
	cmd.Flags().StringVar(&query.Priority, "priority", "", "Priority (low, medium, high)")
	cmd.Flags().StringVar(&query.Search, "search", "", "Match title or description")
	cmd.Flags().StringVar(&query.SortBy, "sort-by", "", "Sort field (createdAt, updatedAt, dueDate, title, priority, progress)")
	cmd.Flags().StringVar(&query.SortOrder, "order", "", "asc or desc")
	cmd.Flags().IntVar(&query.Limit, "limit", 0, "Maximum number of tasks")
	return cmd
}

func newTasksShowCommand(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one task with its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				var task *entities.Task
				err := env.authed(ctx, func() error {
					var err error
					task, err = env.api.GetTask(ctx, args[0])
					return err
				})
				if err != nil {
					return err
				}
				return printTask(cmd.OutOrStdout(), task)
			})
		},
	}
}

func newTasksAddCommand(opts *clientOptions) *cobra.Command {
	var (
		req      ports.CreateTaskRequest
		priority string
		due      string
		estimate float64
	)
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Title = strings.Join(args, " ")
			req.Priority = entities.Priority(priority)
			if estimate > 0 {
				req.EstimatedHours = &estimate
			}
			if due != "" {
				d, err := parseDay(due)
				if err != nil {
					return err
				}
				req.DueDate = d
			}
			return runClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				return env.taskWrite(ctx, cmd.OutOrStdout(), "Created", func() (*entities.Task, error) {
					return env.api.CreateTask(ctx, req)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&req.Description, "description", "d", "", "Description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Priority (low, medium, high)")
	cmd.Flags().StringVar(&due, "due", "", "Due date, YYYY-MM-DD")
	cmd.Flags().Float64Var(&estimate, "estimate", 0, "Estimated hours")
	cmd.Flags().StringSliceVar(&req.Tags, "tag", nil, "Tag (repeatable)")
	return cmd
}

func newTasksUpdateCommand(opts *clientOptions) *cobra.Command {
	var title, description, status, priority, due string
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a task's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req ports.UpdateTaskRequest
			flags := cmd.Flags()
			if flags.Changed("title") {
				req.Title = &title
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("status") {
				s := entities.TaskStatus(status)
				req.Status = &s
			}
			if flags.Changed("priority") {
				p := entities.Priority(priority)
				req.Priority = &p
			}
			if flags.Changed("due") {
				d, err := parseDay(due)
				if err != nil {
					return err
				}
				req.DueDate = d
			}
			return runClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				return env.taskWrite(ctx, cmd.OutOrStdout(), "Updated", func() (*entities.Task, error) {
					return env.api.UpdateTask(ctx, args[0], req)
				})
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVar(&status, "status", "", "pending, in-progress or completed")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low, medium or high")
	cmd.Flags().StringVar(&due, "due", "", "Due date, YYYY-MM-DD")
	return cmd
}

func newTasksDeleteCommand(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				err := env.authed(ctx, func() error {
					return env.api.DeleteTask(ctx, args[0])
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newTasksProgressCommand(opts *clientOptions) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "progress ID PERCENT",
		Short: "Record today's progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			progress, err := strconv.Atoi(strings.TrimSuffix(args[1], "%"))
			if err != nil {
				return fmt.Errorf("progress must be a whole number: %q", args[1])
			}
			return runClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				return env.taskWrite(ctx, cmd.OutOrStdout(), "Progress recorded for", func() (*entities.Task, error) {
					return env.api.UpdateProgress(ctx, args[0], progress, note)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&note, "note", "n", "", "Note for today's entry")
	return cmd
}

func newTasksTimeCommand(opts *clientOptions) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "time ID HOURS",
		Short: "Log today's hours (replaces any earlier entry for today)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hours, err := strconv.ParseFloat(strings.TrimSuffix(args[1], "h"), 64)
			if err != nil {
				return fmt.Errorf("hours must be a number: %q", args[1])
			}
			return runClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				return env.taskWrite(ctx, cmd.OutOrStdout(), "Time logged for", func() (*entities.Task, error) {
					return env.api.AddTimeEntry(ctx, args[0], hours, description)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "What the time was spent on")
	return cmd
}

func newTasksDailyCommand(opts *clientOptions) *cobra.Command {
	var (
		workedOn        bool
		mood            string
		accomplishments []string
		blockers        []string
		nextSteps       []string
	)
	cmd := &cobra.Command{
		Use:   "daily ID",
		Short: "Record today's daily update",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ports.DailyUpdateRequest{
				WorkedOn:        &workedOn,
				Accomplishments: accomplishments,
				Blockers:        blockers,
				NextSteps:       nextSteps,
			}
			if mood != "" {
				m := entities.Mood(mood)
				req.Mood = &m
			}
			return runClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				return env.taskWrite(ctx, cmd.OutOrStdout(), "Daily update recorded for", func() (*entities.Task, error) {
					return env.api.AddDailyUpdate(ctx, args[0], req)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&workedOn, "worked-on", true, "Whether the task was worked on today")
	cmd.Flags().StringVar(&mood, "mood", "", "great, good, neutral, bad or terrible")
	cmd.Flags().StringArrayVar(&accomplishments, "done", nil, "Accomplishment (repeatable)")
	cmd.Flags().StringArrayVar(&blockers, "blocker", nil, "Blocker (repeatable)")
	cmd.Flags().StringArrayVar(&nextSteps, "next", nil, "Next step (repeatable)")
	return cmd
}

func newDashboardCommand(opts *clientOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show completion, progress distribution and recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "yaml" {
				return fmt.Errorf("unknown output %q, want text or yaml", output)
			}
			return runClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				var dash *dashboard.Dashboard
				err := env.authed(ctx, func() error {
					var err error
					dash, err = dashboard.Build(ctx, env.api)
					return err
				})
				if err != nil {
					// still renderable from the last known tasks
					env.logger.Warnw("Dashboard built offline", "reason", client.UserMessage(err))
				}
				if output == "yaml" {
					return dashboard.RenderYAML(cmd.OutOrStdout(), dash)
				}
				return dashboard.RenderText(cmd.OutOrStdout(), dash)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "text or yaml")
	return cmd
}

// taskWrite runs a task mutation and prints the result
func (e *clientEnv) taskWrite(ctx context.Context, out io.Writer, verb string, fn func() (*entities.Task, error)) error {
	var task *entities.Task
	err := e.authed(ctx, func() error {
		var err error
		task, err = fn()
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s (%s, %d%%)\n", verb, task.Title, task.Status, task.Progress)
	return nil
}

func registerRequest(email, password, name string) ports.RegisterRequest {
	return ports.RegisterRequest{Email: email, Password: password, Name: name}
}

func parseDay(s string) (*ports.Date, error) {
	t, err := time.Parse(entities.DayLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return &ports.Date{Time: t}, nil
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func printTasks(w io.Writer, tasks []*entities.Task, total int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tPRIORITY\tPROGRESS\tDUE\tHOURS")
	for _, t := range tasks {
		due := "-"
		if t.DueDate != nil {
			due = entities.DayOf(*t.DueDate)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d%%\t%s\t%.2f\n",
			t.ID, t.Title, t.Status, t.Priority, t.Progress, due, t.TotalTimeSpent)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d of %d tasks\n", len(tasks), total)
	return nil
}

func printTask(w io.Writer, t *entities.Task) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", t.ID)
	fmt.Fprintf(tw, "Title\t%s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(tw, "Description\t%s\n", t.Description)
	}
	fmt.Fprintf(tw, "Status\t%s\n", t.Status)
	fmt.Fprintf(tw, "Priority\t%s\n", t.Priority)
	fmt.Fprintf(tw, "Progress\t%d%%\n", t.Progress)
	if t.DueDate != nil {
		fmt.Fprintf(tw, "Due\t%s\n", entities.DayOf(*t.DueDate))
	}
	if t.EstimatedHours != nil {
		fmt.Fprintf(tw, "Estimated\t%.2fh\n", *t.EstimatedHours)
	}
	fmt.Fprintf(tw, "Time spent\t%.2fh\n", t.TotalTimeSpent)
	if len(t.Tags) > 0 {
		fmt.Fprintf(tw, "Tags\t%s\n", joinNonEmpty(t.Tags...))
	}

	if len(t.ProgressHistory) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "DATE\tPROGRESS\tNOTE")
		for _, e := range t.ProgressHistory.Entries() {
			fmt.Fprintf(tw, "%s\t%d%%\t%s\n", e.Date, e.Progress, e.Note)
		}
	}
	if len(t.TimeEntries) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "DATE\tHOURS\tDESCRIPTION")
		for _, e := range t.TimeEntries.Entries() {
			fmt.Fprintf(tw, "%s\t%.2f\t%s\n", e.Date, e.Hours, e.Description)
		}
	}
	if len(t.DailyUpdates) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "DATE\tMOOD\tDONE\tBLOCKERS\tNEXT")
		for _, u := range t.DailyUpdates.Entries() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.Date, u.Mood,
				joinNonEmpty(u.Accomplishments...), joinNonEmpty(u.Blockers...), joinNonEmpty(u.NextSteps...))
		}
	}
	return tw.Flush()
}
