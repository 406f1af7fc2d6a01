package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shotfleet/shotfleet/app"
	"github.com/shotfleet/shotfleet/config"
	"github.com/shotfleet/shotfleet/core/model"
	"github.com/shotfleet/shotfleet/infra/logger"
)

var staffOrgID string

var staffCmd = &cobra.Command{
	Use:   "staff <project-id>",
	Short: "Run one staffing pass for a project",
	Args:  cobra.ExactArgs(1),
	RunE:  staffProject,
}

func init() {
	staffCmd.Flags().StringVar(&staffOrgID, "org", "", "organization scope")
	rootCmd.AddCommand(staffCmd)
}

func staffProject(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	logg := logger.New("staff-command")
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	res, err := svc.Manager.Staff(ctx, model.OrgContext{OrganizationID: staffOrgID}, args[0])
	if err != nil {
		return fmt.Errorf("staff %s: %w", args[0], err)
	}
	logg.Infof("project %s assigned to %s (interval %s)",
		args[0], res.TechnicianID, res.IntervalID)
	return nil
}
