package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/pocketcal/internal/application"
	"github.com/example/pocketcal/internal/config"
	"github.com/example/pocketcal/internal/ics"
	"github.com/example/pocketcal/internal/persistence/sqlite"
)

const dateLayout = "2006-01-02"

// withApp loads the configuration, wires the components and runs fn.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(a *app) error) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	runErr := fn(a)
	if err := a.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// resolveUser prefers the flag and falls back to sync.user_id.
func resolveUser(flag string, cfg config.Config) (application.Principal, error) {
	if flag == "" {
		flag = cfg.Sync.UserID
	}
	if flag == "" {
		return application.Principal{}, errors.New("--user is required when sync.user_id is not configured")
	}
	return application.Principal{UserID: flag}, nil
}

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass against the configured remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if a.engine == nil {
					return errNoRemote
				}
				principal, err := resolveUser(user, a.cfg)
				if err != nil {
					return err
				}
				result, err := a.engine.Sync(cmd.Context(), principal.UserID)
				if err != nil {
					return fmt.Errorf("sync: %w", err)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user to sync (defaults to sync.user_id)")
	return cmd
}

func newInstancesCommand(opts *rootOptions) *cobra.Command {
	var (
		user     string
		from, to string
	)
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "List event occurrences in a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				principal, err := resolveUser(user, a.cfg)
				if err != nil {
					return err
				}
				start, err := parseDay(from, a.location)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				end, err := parseDay(to, a.location)
				if err != nil {
					return fmt.Errorf("--to: %w", err)
				}
				instances, err := a.events.Instances(cmd.Context(), principal, start, end)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "START\tEND\tTITLE\tEVENT")
				for _, inst := range instances {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", formatWhen(inst.Start, inst.AllDay, a.location), formatWhen(inst.End, inst.AllDay, a.location), inst.Title, inst.EventUID)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "owner of the events (defaults to sync.user_id)")
	cmd.Flags().StringVar(&from, "from", "", "first day of the range (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "end of the range, exclusive (YYYY-MM-DD or RFC 3339)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	var user, calendarID string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import events from an iCalendar file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				principal, err := resolveUser(user, a.cfg)
				if err != nil {
					return err
				}
				target, err := importCalendar(cmd, a, principal, calendarID)
				if err != nil {
					return err
				}

				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()

				imported, err := ics.Parse(f, a.location)
				if err != nil {
					return err
				}
				for _, skipped := range imported.Skipped {
					a.logger.Warn("skipped calendar entry", "error", skipped)
				}
				result, err := ics.Import(cmd.Context(), a.local, principal.UserID, target, imported)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "calendar %s: %d added, %d updated, %d skipped\n", target, result.Added, result.Updated, result.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "owner of the imported events (defaults to sync.user_id)")
	cmd.Flags().StringVar(&calendarID, "calendar", "", "target calendar (defaults to the user's default calendar)")
	return cmd
}

// importCalendar returns the requested calendar, the default one, or a newly
// created calendar for a user that has none.
func importCalendar(cmd *cobra.Command, a *app, principal application.Principal, calendarID string) (string, error) {
	if calendarID != "" {
		calendar, err := a.calendars.GetCalendar(cmd.Context(), principal, calendarID)
		if err != nil {
			return "", err
		}
		return calendar.ID, nil
	}
	calendars, err := a.calendars.ListCalendars(cmd.Context(), principal)
	if err != nil {
		return "", err
	}
	for _, c := range calendars {
		if c.IsDefault {
			return c.ID, nil
		}
	}
	created, err := a.calendars.CreateCalendar(cmd.Context(), principal, application.CalendarInput{Name: "Imported"})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var user, calendarID, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export events as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				principal, err := resolveUser(user, a.cfg)
				if err != nil {
					return err
				}
				events, err := a.events.ListEvents(cmd.Context(), principal)
				if err != nil {
					return err
				}
				if calendarID != "" {
					kept := events[:0]
					for _, e := range events {
						if e.CalendarID == calendarID {
							kept = append(kept, e)
						}
					}
					events = kept
				}

				var w io.Writer = cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return ics.Export(w, events, time.Now())
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "owner of the events (defaults to sync.user_id)")
	cmd.Flags().StringVar(&calendarID, "calendar", "", "only export this calendar")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "destination file, - for stdout")
	return cmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and print the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != config.StorageSQLite {
				return fmt.Errorf("migrate requires the %s storage driver, got %q", config.StorageSQLite, cfg.Storage.Driver)
			}
			storage, err := sqlite.Open(sqlite.Config{Path: cfg.Storage.Path}, logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			if err := storage.Migrate(cmd.Context()); err != nil {
				return err
			}
			version, err := storage.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %s\n", version)
			return nil
		},
	}
}

func parseDay(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, value, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", value)
	}
	return t, nil
}

func formatWhen(t time.Time, allDay bool, loc *time.Location) string {
	if allDay {
		return t.In(loc).Format(dateLayout)
	}
	return t.In(loc).Format("2006-01-02 15:04")
}
