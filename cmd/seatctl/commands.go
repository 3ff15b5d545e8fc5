package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"practice-controlplane/services/license"
)

type reconcileFlags struct {
	tenantID string
	itemID   string
	seats    int
	dryRun   bool
}

func newReconcileCmd(g *globalFlags) *cobra.Command {
	f := &reconcileFlags{}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Bring a tenant's license scope to the given seat count",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.tenantID == "" {
				return errors.New("--tenant is required")
			}
			if !cmd.Flags().Changed("seats") {
				return errors.New("--seats is required")
			}
			if f.seats < 0 {
				return fmt.Errorf("--seats must not be negative, got %d", f.seats)
			}

			return withApp(cmd.Context(), g, func(ctx context.Context, d deps) error {
				if f.dryRun {
					return dryRun(ctx, cmd, d.Licenses, f)
				}

				req := license.ReconcileRequest{TenantID: f.tenantID, Seats: f.seats}
				if f.itemID != "" {
					req.SubscriptionItemID = &f.itemID
				}

				res, err := d.Licenses.Reconcile(ctx, req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.tenantID, "tenant", "", "Tenant ID")
	flags.StringVar(&f.itemID, "item", "", "Subscription item ID; empty targets the tenant-wide pool")
	flags.IntVar(&f.seats, "seats", 0, "Target number of non-revoked licenses")
	flags.BoolVar(&f.dryRun, "dry-run", false, "Print the current and target counts without changing anything")

	return cmd
}

func dryRun(ctx context.Context, cmd *cobra.Command, svc *license.Service, f *reconcileFlags) error {
	filter := license.ListFilter{SubscriptionItemID: f.itemID}
	licenses, err := svc.List(ctx, f.tenantID, filter)
	if err != nil {
		return err
	}

	current := 0
	for _, l := range licenses {
		if l.Status == license.StatusRevoked {
			continue
		}
		if f.itemID == "" && l.SubscriptionItemID != nil {
			continue
		}
		current++
	}

	return writeJSON(cmd.OutOrStdout(), map[string]any{
		"tenant_id":            f.tenantID,
		"subscription_item_id": f.itemID,
		"current":              current,
		"target":               f.seats,
		"delta":                f.seats - current,
	})
}

func newSummaryCmd(g *globalFlags) *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show license counts per status for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantID == "" {
				return errors.New("--tenant is required")
			}
			return withApp(cmd.Context(), g, func(ctx context.Context, d deps) error {
				summary, err := d.Licenses.Summary(ctx, tenantID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID")

	return cmd
}

func newMigrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), g, func(ctx context.Context, d deps) error {
				if err := d.Bootstrap.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			})
		},
	}
}
