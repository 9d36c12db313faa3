package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elisa-itb/elisa/dashboard"
)

const monthLayout = "2006-01"

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("faculty", "F", dashboard.All, "Faculty code, or 'all'")
	cmd.Flags().StringP("building", "B", dashboard.All, "Building, or 'all'")
	cmd.Flags().StringP("floor", "L", dashboard.All, "Floor, or 'all'")
}

func filterFromFlags(cmd *cobra.Command) dashboard.Filter {
	var f dashboard.Filter
	f.Faculty, _ = cmd.Flags().GetString("faculty")
	f.Building, _ = cmd.Flags().GetString("building")
	f.Floor, _ = cmd.Flags().GetString("floor")
	return f
}

// periodArg returns args[0] parsed with layout, or now. Future periods are
// rejected because the dashboard has no data for them yet.
func periodArg(args []string, layout string, now time.Time) (time.Time, error) {
	if len(args) == 0 {
		return now, nil
	}
	t, err := time.ParseInLocation(layout, args[0], now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected %s", args[0], layout)
	}
	if t.After(now) {
		return time.Time{}, fmt.Errorf("date %s is in the future", args[0])
	}
	return t, nil
}

// watchOrOnce runs fetch once, or on every interval until interrupted when
// --watch is set.
func watchOrOnce(cmd *cobra.Command, a *cliApp, fetch func(ctx context.Context) (string, error)) error {
	watch, _ := cmd.Flags().GetBool("watch")
	if !watch {
		out, err := fetch(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}

	interactive := isInteractive(os.Stdout.Fd())
	dashboard.Refresh(cmd.Context(), a.rc.Refresh, func(ctx context.Context) error {
		out, err := fetch(ctx)
		if err != nil {
			return err
		}
		if interactive {
			fmt.Print("\033[H\033[2J")
		}
		fmt.Print(out)
		fmt.Println(color.New(color.Faint).Sprintf("updated %s, refreshing every %s", time.Now().Format("15:04:05"), a.rc.Refresh))
		return nil
	}, func(err error) {
		a.logger.Warn("dashboard refresh failed", zap.Error(err))
		color.New(color.FgRed).Fprintln(os.Stderr, err)
	})
	return nil
}

func addDashboardCommands(root *cobra.Command, a *cliApp) {
	dailyCmd := &cobra.Command{
		Use:   "daily [YYYY-MM-DD]",
		Short: "Hourly usage and cost for one day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := periodArg(args, time.DateOnly, time.Now())
			if err != nil {
				return err
			}
			client, err := a.dashboard()
			if err != nil {
				return err
			}
			date := day.Format(time.DateOnly)
			f := filterFromFlags(cmd)
			return watchOrOnce(cmd, a, func(ctx context.Context) (string, error) {
				rep, err := client.Daily(ctx, date, f)
				if err != nil {
					return "", err
				}
				return a.renderer().renderDaily(date, rep), nil
			})
		},
	}
	addFilterFlags(dailyCmd)
	dailyCmd.Flags().BoolP("watch", "w", false, "Refresh periodically")

	monthlyCmd := &cobra.Command{
		Use:   "monthly [YYYY-MM]",
		Short: "Daily usage and cost for one month",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := periodArg(args, monthLayout, time.Now())
			if err != nil {
				return err
			}
			client, err := a.dashboard()
			if err != nil {
				return err
			}
			month := m.Format(monthLayout)
			rep, err := client.Monthly(cmd.Context(), month, filterFromFlags(cmd))
			if err != nil {
				return err
			}
			fmt.Print(a.renderer().renderMonthly(month, rep))
			return nil
		},
	}
	addFilterFlags(monthlyCmd)

	nowCmd := &cobra.Command{
		Use:   "now",
		Short: "Live power draw and today's totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.dashboard()
			if err != nil {
				return err
			}
			f := filterFromFlags(cmd)
			return watchOrOnce(cmd, a, func(ctx context.Context) (string, error) {
				date := time.Now().Format(time.DateOnly)
				rep, err := client.Now(ctx, date, f)
				if err != nil {
					return "", err
				}
				return a.renderer().renderNow(date, rep), nil
			})
		},
	}
	addFilterFlags(nowCmd)
	nowCmd.Flags().BoolP("watch", "w", false, "Refresh periodically")

	heatmapCmd := &cobra.Command{
		Use:   "heatmap [YYYY-MM-DD]",
		Short: "Weekday by hour usage for the week containing a date",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := periodArg(args, time.DateOnly, time.Now())
			if err != nil {
				return err
			}
			client, err := a.dashboard()
			if err != nil {
				return err
			}
			start, end := dashboard.WeekRange(day)
			rep, err := client.Heatmap(cmd.Context(), start, end, filterFromFlags(cmd))
			if err != nil {
				return err
			}
			fmt.Print(a.renderer().renderHeatmap(rep))
			return nil
		},
	}
	addFilterFlags(heatmapCmd)

	compareCmd := &cobra.Command{
		Use:   "compare [YYYY-MM]",
		Short: "Compare faculties for one month",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := periodArg(args, monthLayout, time.Now())
			if err != nil {
				return err
			}
			field, _ := cmd.Flags().GetString("sort")
			desc, _ := cmd.Flags().GetBool("desc")

			client, err := a.dashboard()
			if err != nil {
				return err
			}
			month := m.Format(monthLayout)
			rep, err := client.Compare(cmd.Context(), month)
			if err != nil {
				return err
			}
			info, err := dashboard.SortFacultyInfo(rep.Data.Info, field, desc)
			if err != nil {
				return err
			}
			fmt.Print(a.renderer().renderCompare(month, rep, info))
			return nil
		},
	}
	compareCmd.Flags().StringP("sort", "s", "energy", "Sort column")
	compareCmd.Flags().Bool("desc", true, "Sort descending")

	optionsCmd := &cobra.Command{
		Use:   "options [faculty] [building]",
		Short: "List faculties, a faculty's buildings, or a building's floors",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.dashboard()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			r := a.renderer()
			switch len(args) {
			case 0:
				opts, err := client.Faculties(ctx)
				if err != nil {
					return err
				}
				fmt.Print(r.renderOptions("Faculties", opts))
			case 1:
				opts, err := client.Buildings(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Print(r.renderOptions("Buildings of "+args[0], opts))
			default:
				opts, err := client.Floors(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Print(r.renderOptions("Floors of "+args[1], opts))
			}
			return nil
		},
	}

	root.AddCommand(dailyCmd, monthlyCmd, nowCmd, heatmapCmd, compareCmd, optionsCmd)
}
