package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Strob0t/tenantgate/internal/adapter/postgres"
	"github.com/Strob0t/tenantgate/internal/config"
	"github.com/Strob0t/tenantgate/internal/domain"
	"github.com/Strob0t/tenantgate/internal/domain/tenant"
	"github.com/Strob0t/tenantgate/internal/logger"
	"github.com/Strob0t/tenantgate/internal/service"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	cmds := map[string]func([]string) error{
		"create-tenant":     runAdminCreateTenant,
		"create-dev-tenant": runAdminCreateDevTenant,
		"list-tenants":      runAdminListTenants,
		"deactivate":        func(a []string) error { return runAdminSetActive("deactivate", a) },
		"activate":          func(a []string) error { return runAdminSetActive("activate", a) },
		"set-plan":          runAdminSetPlan,
		"bind-domain":       runAdminBindDomain,
		"bind-localhost":    runAdminBindLocalhost,
		"unbind-domain":     runAdminUnbindDomain,
		"list-domains":      runAdminListDomains,
		"migrate":           runAdminMigrate,
	}
	fn, ok := cmds[args[0]]
	if !ok {
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
	return fn(args[1:])
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: tenantgate admin <command> [options]

Commands:
  create-tenant      Provision a tenant and its partition
  create-dev-tenant  Provision the local development tenant and bind its domain
  list-tenants       List all tenants
  deactivate         Deactivate a tenant (data is kept)
  activate           Reactivate a tenant
  set-plan           Change a tenant's plan
  bind-domain        Bind a hostname to a tenant
  bind-localhost     Bind "localhost" to a tenant
  unbind-domain      Remove a hostname binding
  list-domains       List a tenant's hostnames
  migrate            Apply, roll back or show registry migrations
  help               Show this help message

Examples:
  tenantgate admin create-tenant --name "Acme Corp" --slug acme --plan premium
  tenantgate admin create-dev-tenant --domain 127.0.0.1 --name "Dev Tenant" --slug dev
  tenantgate admin bind-domain --slug acme --hostname acme.example.com --primary
  tenantgate admin deactivate --slug acme
  tenantgate admin migrate status
`)
}

// loadAdminDeps wires the services without running migrations or serving.
// Mutations made here evict routing entries and notify running servers
// exactly as the admin API does.
func loadAdminDeps() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// Short-lived commands log synchronously.
	cfg.Logging.Async = false
	l, _ := logger.New(cfg.Logging)
	slog.SetDefault(l)

	return newApp(context.Background(), cfg, false)
}

// committed reports a mutation result. A failed routing cache eviction after
// commit is a warning, not a failure.
func committed(err error) error {
	if errors.Is(err, domain.ErrInvalidationFailed) {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		return nil
	}
	return err
}

func tenantBySlug(ctx context.Context, a *app, slug string) (*tenant.Tenant, error) {
	if slug == "" {
		return nil, fmt.Errorf("--slug is required")
	}
	t, err := a.partitions.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("tenant %q: %w", slug, err)
	}
	return t, nil
}

func runAdminCreateTenant(args []string) error {
	fs := flag.NewFlagSet("create-tenant", flag.ContinueOnError)
	name := fs.String("name", "", "tenant display name (required)")
	slug := fs.String("slug", "", "tenant slug (required)")
	plan := fs.String("plan", string(tenant.PlanFree), "plan: free, basic, premium, enterprise")
	domainName := fs.String("domain", "", "hostname to bind as primary (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *slug == "" {
		return fmt.Errorf("--name and --slug are required")
	}

	a, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	t, err := a.partitions.Provision(ctx, tenant.ProvisionRequest{Name: *name, Slug: *slug, Plan: tenant.Plan(*plan)})
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Tenant created: %s (id=%s, partition=%s, plan=%s)\n", t.Slug, t.ID, t.Partition, t.Plan)

	if *domainName != "" {
		d, err := a.directory.Bind(ctx, tenant.BindRequest{Hostname: *domainName, TenantID: t.ID, IsPrimary: true})
		if err := committed(err); err != nil {
			return fmt.Errorf("bind domain: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Domain bound: %s -> %s\n", d.Hostname, t.Slug)
	}
	return nil
}

func runAdminCreateDevTenant(args []string) error {
	fs := flag.NewFlagSet("create-dev-tenant", flag.ContinueOnError)
	host := fs.String("domain", service.DevTenantDomain, "hostname to bind as primary")
	name := fs.String("name", service.DevTenantName, "tenant display name")
	slug := fs.String("slug", service.DevTenantSlug, "tenant slug")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := service.EnsureDevTenant(context.Background(), a.partitions, a.directory, *host, *name, *slug)
	if err := committed(err); err != nil {
		return fmt.Errorf("create dev tenant: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Dev tenant ready: %s (id=%s, partition=%s) at %s\n", t.Slug, t.ID, t.Partition, *host)
	return nil
}

func runAdminListTenants(args []string) error {
	fs := flag.NewFlagSet("list-tenants", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer a.Close()

	tenants, err := a.partitions.List(context.Background())
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSLUG\tNAME\tPARTITION\tPLAN\tACTIVE")
	for i := range tenants {
		t := &tenants[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n", t.ID, t.Slug, t.Name, t.Partition, t.Plan, t.Active)
	}
	return w.Flush()
}

func runAdminSetActive(name string, args []string) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	slug := fs.String("slug", "", "tenant slug (required)")
	yes := fs.Bool("yes", false, "skip confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	t, err := tenantBySlug(ctx, a, *slug)
	if err != nil {
		return err
	}

	op := a.partitions.Activate
	if name == "deactivate" {
		if !*yes && !confirm(fmt.Sprintf("Deactivate %s? Every hostname of the tenant stops resolving.", t.Slug)) {
			return fmt.Errorf("aborted")
		}
		op = a.partitions.Deactivate
	}
	if _, err := op(ctx, t.ID); committed(err) != nil {
		return fmt.Errorf("%s %s: %w", name, t.Slug, err)
	}
	fmt.Fprintf(os.Stderr, "Tenant %s: %sd\n", t.Slug, name)
	return nil
}

func runAdminSetPlan(args []string) error {
	fs := flag.NewFlagSet("set-plan", flag.ContinueOnError)
	slug := fs.String("slug", "", "tenant slug (required)")
	plan := fs.String("plan", "", "new plan (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *plan == "" {
		return fmt.Errorf("--plan is required")
	}

	a, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	t, err := tenantBySlug(ctx, a, *slug)
	if err != nil {
		return err
	}
	if _, err := a.partitions.ChangePlan(ctx, t.ID, tenant.Plan(*plan)); committed(err) != nil {
		return fmt.Errorf("set plan: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Tenant %s: plan %s -> %s\n", t.Slug, t.Plan, *plan)
	return nil
}

func runAdminBindDomain(args []string) error {
	fs := flag.NewFlagSet("bind-domain", flag.ContinueOnError)
	slug := fs.String("slug", "", "tenant slug (required)")
	host := fs.String("hostname", "", "hostname to bind (required)")
	primary := fs.Bool("primary", false, "make this the tenant's primary hostname")
	override := fs.Bool("override", false, "allow binding to an inactive tenant")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *host == "" {
		return fmt.Errorf("--hostname is required")
	}

	a, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	t, err := tenantBySlug(ctx, a, *slug)
	if err != nil {
		return err
	}
	d, err := a.directory.Bind(ctx, tenant.BindRequest{Hostname: *host, TenantID: t.ID, IsPrimary: *primary, Override: *override})
	if err := committed(err); err != nil {
		return fmt.Errorf("bind domain: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Domain bound: %s -> %s (primary=%t)\n", d.Hostname, t.Slug, d.IsPrimary)
	return nil
}

func runAdminBindLocalhost(args []string) error {
	fs := flag.NewFlagSet("bind-localhost", flag.ContinueOnError)
	slug := fs.String("slug", service.DevTenantSlug, "tenant slug")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := service.BindLocalhost(context.Background(), a.partitions, a.directory, *slug)
	if err := committed(err); err != nil {
		return fmt.Errorf("bind localhost: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Domain bound: %s -> %s\n", d.Hostname, *slug)
	return nil
}

func runAdminUnbindDomain(args []string) error {
	fs := flag.NewFlagSet("unbind-domain", flag.ContinueOnError)
	host := fs.String("hostname", "", "hostname to unbind (required)")
	yes := fs.Bool("yes", false, "skip confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *host == "" {
		return fmt.Errorf("--hostname is required")
	}
	if !*yes && !confirm(fmt.Sprintf("Unbind %s? Requests for it will no longer resolve.", *host)) {
		return fmt.Errorf("aborted")
	}

	a, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := committed(a.directory.Unbind(context.Background(), *host)); err != nil {
		return fmt.Errorf("unbind domain: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Domain unbound: %s\n", *host)
	return nil
}

func runAdminListDomains(args []string) error {
	fs := flag.NewFlagSet("list-domains", flag.ContinueOnError)
	slug := fs.String("slug", "", "tenant slug (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	t, err := tenantBySlug(ctx, a, *slug)
	if err != nil {
		return err
	}
	domains, err := a.directory.ListForTenant(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("list domains: %w", err)
	}
	if len(domains) == 0 {
		fmt.Printf("No hostnames bound to %s.\n", t.Slug)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "HOSTNAME\tPRIMARY\tCREATED")
	for i := range domains {
		_, _ = fmt.Fprintf(w, "%s\t%t\t%s\n", domains[i].Hostname, domains[i].IsPrimary, domains[i].CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "migrations to roll back with down")
	yes := fs.Bool("yes", false, "skip confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	action := "up"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()

	switch action {
	case "up":
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return err
		}
	case "down":
		if !*yes && !confirm(fmt.Sprintf("Roll back %d registry migration(s)?", *steps)) {
			return fmt.Errorf("aborted")
		}
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *steps); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down or status)", action)
	}

	v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Registry schema version: %d\n", v)
	return nil
}

// confirm asks a yes/no question on an interactive terminal. Without a
// terminal it refuses, so scripts must pass --yes.
func confirm(question string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // fd fits in int
		fmt.Fprintln(os.Stderr, "not a terminal; pass --yes to confirm")
		return false
	}
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
