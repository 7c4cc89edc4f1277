package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/flemzord/sitewatch/internal/watch"
	"github.com/flemzord/sitewatch/pkg/app"
)

// offlineNote is appended to the help of commands that write the store
// directly.
const offlineNote = `This command opens the job store directly. A running sitewatch process
loaded its jobs at startup and does not see the change until it restarts;
its in-memory state wins until then. To change a live process, use the
admin API instead:

  PUT /api/jobs/{guild}/{name}/active   {"active": true|false}
  POST /api/jobs                        (create)`

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage watch jobs",
	}
	cmd.AddCommand(jobsListCmd(), jobsAddCmd(), jobsSetActiveCmd(true), jobsSetActiveCmd(false))
	return cmd
}

func jobsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			guild, _ := cmd.Flags().GetString("guild")
			inst, err := app.Open(cmd.Context(), quiet(runParams(cmd)))
			if err != nil {
				return err
			}
			defer inst.Close()

			var jobs []watch.Job
			for _, j := range inst.Registry.All() {
				if guild == "" || j.GuildID == guild {
					jobs = append(jobs, j)
				}
			}
			return printJobs(cmd.OutOrStdout(), jobs)
		},
	}
	cmd.Flags().String("guild", "", "Only list jobs of this guild")
	return cmd
}

func printJobs(out io.Writer, jobs []watch.Job) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GUILD\tNAME\tACTIVE\tINTERVAL\tCHANNEL\tURL\tSELECTOR")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\t%s\t%s\n",
			j.GuildID, j.Name, j.Active, j.Interval, j.ChannelID, j.URL, j.Selector)
	}
	return tw.Flush()
}

func jobsAddCmd() *cobra.Command {
	var def watch.Definition
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a job",
		Long:  "Create a job.\n\n" + offlineNote,
		RunE: func(cmd *cobra.Command, _ []string) error {
			interactive, _ := cmd.Flags().GetBool("interactive")
			if interactive {
				if err := promptDefinition(&def); err != nil {
					return err
				}
			}
			if err := def.Validate(); err != nil {
				return err
			}

			inst, err := app.Open(cmd.Context(), quiet(runParams(cmd)))
			if err != nil {
				return err
			}
			defer inst.Close()

			job, err := inst.Registry.Create(cmd.Context(), def)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created job %s/%s (%s)\n", job.GuildID, job.Name, job.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&def.GuildID, "guild", "", "Guild the job belongs to")
	f.StringVar(&def.Name, "name", "", "Job name, unique within the guild")
	f.StringVar(&def.URL, "url", "", "Page or feed URL")
	f.StringVar(&def.Selector, "selector", "", "CSS selector, or feed: for feeds")
	f.StringVar(&def.ChannelID, "channel", "", "Notification target, e.g. telegram:12345")
	f.IntVar(&def.Interval, "interval", 1, "Run every N scheduler ticks")
	f.BoolP("interactive", "i", false, "Prompt for the job fields")
	return cmd
}

// promptDefinition fills def through an interactive form, using the
// current values as defaults.
func promptDefinition(def *watch.Definition) error {
	interval := strconv.Itoa(def.Interval)
	required := func(field string) func(string) error {
		return func(s string) error {
			if s == "" {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Guild").Value(&def.GuildID).Validate(required("guild")),
			huh.NewInput().Title("Name").Value(&def.Name).Validate(required("name")),
			huh.NewInput().Title("URL").Value(&def.URL).Validate(required("url")),
			huh.NewInput().Title("Selector").
				Description("CSS selector, or feed: to watch an RSS/Atom feed").
				Value(&def.Selector).Validate(required("selector")),
			huh.NewInput().Title("Channel").
				Description("Notification target, e.g. telegram:12345").
				Value(&def.ChannelID).Validate(required("channel")),
			huh.NewInput().Title("Interval (ticks)").Value(&interval).Validate(func(s string) error {
				n, err := strconv.Atoi(s)
				if err != nil || n < 1 {
					return errors.New("interval must be a positive integer")
				}
				return nil
			}),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	def.Interval, _ = strconv.Atoi(interval)
	return nil
}

func jobsSetActiveCmd(active bool) *cobra.Command {
	use, short := "disable", "Disable a job"
	if active {
		use, short = "enable", "Enable a job"
	}
	return &cobra.Command{
		Use:   use + " <guild> <name>",
		Short: short,
		Long:  short + ".\n\n" + offlineNote,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := app.Open(cmd.Context(), quiet(runParams(cmd)))
			if err != nil {
				return err
			}
			defer inst.Close()

			if err := inst.Registry.SetActive(cmd.Context(), args[0], args[1], active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s/%s %sd\n", args[0], args[1], use)
			return nil
		},
	}
}

// quiet raises the log level for short-lived management commands unless
// the caller chose one.
func quiet(p app.RunParams) app.RunParams {
	if p.LogLevel == "" {
		p.LogLevel = "warn"
	}
	return p
}
