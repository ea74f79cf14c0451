package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fhirway/fhirway/internal/domain/admin"
	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/repository/pg"
)

// tenantCmd groups the `tenant create` operation spec §6's CLI table
// names, following the teacher's tenantCmd()/createCmd() shape.
func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}
	cmd.AddCommand(tenantCreateCmd())
	return cmd
}

func tenantCreateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			tier, _ := cmd.Flags().GetString("subscription-tier")
			if id == "" {
				return fmt.Errorf("--id is required")
			}

			ctx := context.Background()
			_, pool, _, err := loadConfigAndPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := pg.New(pool)
			svc := admin.NewService(repo)

			tenant, err := svc.CreateTenant(ctx, ids.TenantID(id), tier)
			if err != nil {
				return err
			}
			fmt.Printf("created tenant %s (subscription_tier=%s)\n", tenant.ID, tenant.SubscriptionTier)
			return nil
		},
	}
	c.Flags().String("id", "", "Tenant identifier")
	c.Flags().String("subscription-tier", "free", "Subscription tier")
	return c
}
