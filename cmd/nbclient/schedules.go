package main

import (
	"context"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rickgao/notebook-client/internal/api"
	"github.com/rickgao/notebook-client/internal/model"
)

func newSchedulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Manage recurring notebook jobs",
	}
	cmd.AddCommand(newSchedulesListCmd(a))
	cmd.AddCommand(newSchedulesCreateCmd(a))
	cmd.AddCommand(newSchedulesUpdateCmd(a))
	cmd.AddCommand(newSchedulesDeleteCmd(a))
	return cmd
}

func newSchedulesListCmd(a *app) *cobra.Command {
	var notebookID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the schedules of a notebook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withAPI(cmd.Context(), "", func(ctx context.Context, c *api.Client) error {
				schedules, err := c.ListSchedules(ctx, notebookID)
				if err != nil {
					return err
				}
				return renderSchedules(cmd.OutOrStdout(), schedules)
			})
		},
	}
	cmd.Flags().StringVar(&notebookID, "notebook", "", "notebook ID")
	_ = cmd.MarkFlagRequired("notebook")
	return cmd
}

func newSchedulesCreateCmd(a *app) *cobra.Command {
	var (
		notebookID, name, frequency, payload string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a notebook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := model.Schedule{Name: name, Frequency: model.ScheduleFrequency(frequency)}
			if err := parsePayload(payload, &s); err != nil {
				return err
			}
			return a.withAPI(cmd.Context(), "", func(ctx context.Context, c *api.Client) error {
				created, err := c.CreateSchedule(ctx, notebookID, s)
				if err != nil {
					return err
				}
				return renderSchedules(cmd.OutOrStdout(), []model.Schedule{created})
			})
		},
	}
	cmd.Flags().StringVar(&notebookID, "notebook", "", "notebook ID")
	cmd.Flags().StringVar(&name, "name", "", "schedule name")
	cmd.Flags().StringVar(&frequency, "frequency", string(model.FrequencyDaily), "hourly, daily, weekly or monthly")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON object passed to each run")
	_ = cmd.MarkFlagRequired("notebook")
	return cmd
}

func newSchedulesUpdateCmd(a *app) *cobra.Command {
	var (
		notebookID, name, frequency, payload string
	)
	cmd := &cobra.Command{
		Use:   "update <schedule-id>",
		Short: "Change a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := model.Schedule{
				ID:         args[0],
				NotebookID: notebookID,
				Name:       name,
				Frequency:  model.ScheduleFrequency(frequency),
			}
			if err := parsePayload(payload, &s); err != nil {
				return err
			}
			return a.withAPI(cmd.Context(), "", func(ctx context.Context, c *api.Client) error {
				if err := c.UpdateSchedule(ctx, s); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated schedule %s\n", s.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&notebookID, "notebook", "", "notebook ID the schedule belongs to")
	cmd.Flags().StringVar(&name, "name", "", "schedule name")
	cmd.Flags().StringVar(&frequency, "frequency", "", "hourly, daily, weekly or monthly")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON object passed to each run")
	_ = cmd.MarkFlagRequired("frequency")
	return cmd
}

func newSchedulesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <schedule-id>",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAPI(cmd.Context(), "", func(ctx context.Context, c *api.Client) error {
				if err := c.DeleteSchedule(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted schedule %s\n", args[0])
				return nil
			})
		},
	}
}

func parsePayload(raw string, s *model.Schedule) error {
	if raw == "" {
		return nil
	}
	if err := sonic.ConfigStd.UnmarshalFromString(raw, &s.Payload); err != nil {
		return fmt.Errorf("--payload must be a JSON object: %w", err)
	}
	return nil
}

func renderSchedules(w io.Writer, schedules []model.Schedule) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Name", "Frequency", "Created")
	for _, s := range schedules {
		if err := table.Append([]string{s.ID, s.Name, string(s.Frequency), s.CreatedAt}); err != nil {
			return err
		}
	}
	return table.Render()
}
