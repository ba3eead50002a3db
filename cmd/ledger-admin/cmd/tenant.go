package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildledger/api/internal/app"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/domain/tenant"
	"github.com/buildledger/api/pkg/pagination"
)

// tenantView is the serializable shape of a workspace for json/yaml
// output.
type tenantView struct {
	ID        string    `json:"id" yaml:"id"`
	Subdomain string    `json:"subdomain" yaml:"subdomain"`
	Name      string    `json:"name" yaml:"name"`
	Email     string    `json:"email" yaml:"email"`
	Phone     string    `json:"phone,omitempty" yaml:"phone,omitempty"`
	Plan      string    `json:"plan" yaml:"plan"`
	Status    string    `json:"status" yaml:"status"`
	CreatedBy string    `json:"created_by" yaml:"created_by"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

func toTenantView(t *tenant.Tenant) tenantView {
	return tenantView{
		ID:        t.ID().String(),
		Subdomain: t.Subdomain(),
		Name:      t.Name(),
		Email:     t.Email(),
		Phone:     t.Phone(),
		Plan:      t.Plan().String(),
		Status:    t.Status().String(),
		CreatedBy: t.CreatedBy().String(),
		CreatedAt: t.CreatedAt(),
	}
}

var tenantCmd = &cobra.Command{
	Use:     "tenants",
	Aliases: []string{"tenant"},
	Short:   "Manage workspaces",
}

var tenantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces",
	RunE:  runTenantList,
}

var tenantDescribeCmd = &cobra.Command{
	Use:   "describe <subdomain-or-id>",
	Short: "Show a workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runTenantDescribe,
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a workspace for an existing user",
	RunE:  runTenantCreate,
}

func init() {
	tenantListCmd.Flags().Int("page", 1, "Page number")
	tenantListCmd.Flags().Int("per-page", 20, "Items per page")

	tenantCreateCmd.Flags().String("subdomain", "", "Workspace subdomain (required)")
	tenantCreateCmd.Flags().String("name", "", "Company name (required)")
	tenantCreateCmd.Flags().String("email", "", "Contact email (required)")
	tenantCreateCmd.Flags().String("phone", "", "Contact phone")
	tenantCreateCmd.Flags().String("plan", "free", "Plan: free, standard, premium")
	tenantCreateCmd.Flags().String("creator-email", "", "Email of the existing user who will own the workspace (required)")
	_ = tenantCreateCmd.MarkFlagRequired("subdomain")
	_ = tenantCreateCmd.MarkFlagRequired("name")
	_ = tenantCreateCmd.MarkFlagRequired("email")
	_ = tenantCreateCmd.MarkFlagRequired("creator-email")

	tenantCmd.AddCommand(tenantListCmd)
	tenantCmd.AddCommand(tenantDescribeCmd)
	tenantCmd.AddCommand(tenantCreateCmd)
}

func runTenantList(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	page, _ := cmd.Flags().GetInt("page")
	perPage, _ := cmd.Flags().GetInt("per-page")

	result, err := env.tenants.ListTenants(context.Background(), pagination.New(page, perPage))
	if err != nil {
		return err
	}

	views := make([]tenantView, 0, len(result.Data))
	for _, t := range result.Data {
		views = append(views, toTenantView(t))
	}

	switch flagOutput {
	case outputJSON:
		printJSON(views)
	case outputYAML:
		printYAML(views)
	default:
		table := newTable("SUBDOMAIN", "NAME", "PLAN", "STATUS", "CREATED")
		for _, v := range views {
			table.AddRow(v.Subdomain, v.Name, v.Plan, v.Status, shortTime(v.CreatedAt))
		}
		table.Flush()
		printPagination(result.Total, result.Page, result.PerPage, result.TotalPages)
	}
	return nil
}

func runTenantDescribe(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	t, err := resolveTenant(context.Background(), env, args[0])
	if err != nil {
		return err
	}

	v := toTenantView(t)
	switch flagOutput {
	case outputJSON:
		printJSON(v)
	case outputYAML:
		printYAML(v)
	default:
		fmt.Printf("ID:         %s\n", v.ID)
		fmt.Printf("Subdomain:  %s\n", v.Subdomain)
		fmt.Printf("Name:       %s\n", v.Name)
		fmt.Printf("Email:      %s\n", v.Email)
		if v.Phone != "" {
			fmt.Printf("Phone:      %s\n", v.Phone)
		}
		fmt.Printf("Plan:       %s\n", v.Plan)
		fmt.Printf("Status:     %s\n", v.Status)
		fmt.Printf("Created by: %s\n", v.CreatedBy)
		fmt.Printf("Created at: %s\n", shortTime(v.CreatedAt))
	}
	return nil
}

func runTenantCreate(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := context.Background()

	creatorEmail, _ := cmd.Flags().GetString("creator-email")
	creator, err := env.users.GetUserByEmail(ctx, creatorEmail)
	if err != nil {
		return fmt.Errorf("look up creator %q: %w", creatorEmail, err)
	}

	input := app.CreateTenantInput{}
	input.Subdomain, _ = cmd.Flags().GetString("subdomain")
	input.Name, _ = cmd.Flags().GetString("name")
	input.Email, _ = cmd.Flags().GetString("email")
	input.Phone, _ = cmd.Flags().GetString("phone")
	input.Plan, _ = cmd.Flags().GetString("plan")

	t, err := env.tenants.CreateTenant(ctx, input, creator.ID())
	if err != nil {
		return err
	}

	fmt.Printf("Workspace %q created with ID %s\n", t.Subdomain(), t.ID().String())
	return nil
}

// resolveTenant accepts either a subdomain or a workspace UUID.
func resolveTenant(ctx context.Context, env *adminEnv, ref string) (*tenant.Tenant, error) {
	if id, err := shared.IDFromString(ref); err == nil {
		return env.tenants.GetTenant(ctx, id)
	}
	return env.tenants.GetTenantBySubdomain(ctx, ref)
}
