package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildledger/api/pkg/domain/tenant"
)

type invitationView struct {
	ID        string    `json:"id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	Role      string    `json:"role" yaml:"role"`
	Status    string    `json:"status" yaml:"status"`
	InvitedBy string    `json:"invited_by" yaml:"invited_by"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

func toInvitationView(inv *tenant.Invitation) invitationView {
	return invitationView{
		ID:        inv.ID().String(),
		Email:     inv.Email(),
		Role:      inv.Role().String(),
		Status:    inv.Status().String(),
		InvitedBy: inv.InvitedBy().String(),
		ExpiresAt: inv.ExpiresAt(),
		CreatedAt: inv.CreatedAt(),
	}
}

var invitationCmd = &cobra.Command{
	Use:     "invitations",
	Aliases: []string{"invitation", "inv"},
	Short:   "Inspect and sweep workspace invitations",
}

var invitationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a workspace's invitations",
	RunE:  runInvitationList,
}

var invitationCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired invitations past the retention window",
	Long: `Deletes pending invitations whose expiry passed more than the
configured retention ago, across all workspaces. The background worker
runs the same sweep on a schedule; this command is for running it by
hand.`,
	RunE: runInvitationCleanup,
}

func init() {
	invitationListCmd.Flags().String("tenant", "", "Workspace subdomain or ID (required)")
	_ = invitationListCmd.MarkFlagRequired("tenant")

	invitationCmd.AddCommand(invitationListCmd)
	invitationCmd.AddCommand(invitationCleanupCmd)
}

func runInvitationList(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := context.Background()

	ref, _ := cmd.Flags().GetString("tenant")
	t, err := resolveTenant(ctx, env, ref)
	if err != nil {
		return err
	}

	invitations, err := env.tenants.ListInvitations(ctx, t.ID())
	if err != nil {
		return err
	}

	views := make([]invitationView, 0, len(invitations))
	for _, inv := range invitations {
		views = append(views, toInvitationView(inv))
	}

	switch flagOutput {
	case outputJSON:
		printJSON(views)
	case outputYAML:
		printYAML(views)
	default:
		if len(views) == 0 {
			fmt.Println("No invitations found.")
			return nil
		}
		table := newTable("EMAIL", "ROLE", "STATUS", "EXPIRES", "CREATED")
		for _, v := range views {
			table.AddRow(v.Email, v.Role, v.Status, shortTime(v.ExpiresAt), shortTime(v.CreatedAt))
		}
		table.Flush()
	}
	return nil
}

func runInvitationCleanup(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	removed, err := env.tenants.CleanupExpiredInvitations(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Removed %d expired invitation(s)\n", removed)
	return nil
}
