package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/domain/user"
)

type memberView struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Email       string     `json:"email" yaml:"email"`
	Role        string     `json:"role" yaml:"role"`
	IsActive    bool       `json:"is_active" yaml:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty" yaml:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
}

func toMemberView(r *user.Record) memberView {
	return memberView{
		ID:          r.ID().String(),
		Name:        r.Name(),
		Email:       r.Email(),
		Role:        r.Role().String(),
		IsActive:    r.IsActive(),
		LastLoginAt: r.LastLoginAt(),
		CreatedAt:   r.CreatedAt(),
	}
}

var memberCmd = &cobra.Command{
	Use:     "members",
	Aliases: []string{"member"},
	Short:   "Manage workspace members",
}

var memberListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a workspace's members",
	RunE:  runMemberList,
}

var memberDeactivateCmd = &cobra.Command{
	Use:   "deactivate <user-id>",
	Short: "Deactivate a member and revoke their sessions",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemberDeactivate,
}

func init() {
	memberListCmd.Flags().String("tenant", "", "Workspace subdomain or ID (required)")
	_ = memberListCmd.MarkFlagRequired("tenant")

	memberDeactivateCmd.Flags().String("tenant", "", "Workspace subdomain or ID (required)")
	_ = memberDeactivateCmd.MarkFlagRequired("tenant")

	memberCmd.AddCommand(memberListCmd)
	memberCmd.AddCommand(memberDeactivateCmd)
}

func runMemberList(cmd *cobra.Command, args []string) error {
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

	members, err := env.users.ListMembers(ctx, t.ID())
	if err != nil {
		return err
	}

	views := make([]memberView, 0, len(members))
	for _, m := range members {
		views = append(views, toMemberView(m))
	}

	switch flagOutput {
	case outputJSON:
		printJSON(views)
	case outputYAML:
		printYAML(views)
	default:
		if len(views) == 0 {
			fmt.Println("No members found.")
			return nil
		}
		table := newTable("EMAIL", "NAME", "ROLE", "ACTIVE", "LAST LOGIN")
		for _, v := range views {
			table.AddRow(v.Email, v.Name, v.Role, boolToStr(v.IsActive), ptrTime(v.LastLoginAt))
		}
		table.Flush()
	}
	return nil
}

func runMemberDeactivate(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := context.Background()

	memberID, err := shared.IDFromString(args[0])
	if err != nil {
		return fmt.Errorf("invalid user ID %q: %w", args[0], err)
	}

	ref, _ := cmd.Flags().GetString("tenant")
	t, err := resolveTenant(ctx, env, ref)
	if err != nil {
		return err
	}

	// A zero actor ID marks this as an operator action, which is
	// exempt from the self-deactivation guard.
	if err := env.users.DeactivateMember(ctx, t.ID(), memberID, shared.ID{}); err != nil {
		return err
	}

	fmt.Printf("Member %s deactivated\n", memberID.String())
	return nil
}
