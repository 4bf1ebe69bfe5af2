package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/config"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/permissions"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository/sqlite"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/service"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "membros",
		Short:        "Maintenance commands for the members area",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(createAdminCmd())
	rootCmd.AddCommand(grantCmd())
	rootCmd.AddCommand(revokeCmd())
	rootCmd.AddCommand(pagesCmd())
	rootCmd.AddCommand(importProventosCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg     config.Config
	repos   *sqlite.Repositories
	catalog *permissions.Catalog
	logger  *logrus.Logger
	close   func() error
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}

	catalog := permissions.Default()
	if cfg.Permissions.CatalogPath != "" {
		if catalog, err = permissions.Load(cfg.Permissions.CatalogPath); err != nil {
			return nil, err
		}
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	repos := sqlite.NewRepositories(db)
	if err := repos.Init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init repositories: %w", err)
	}
	return &app{cfg: cfg, repos: repos, catalog: catalog, logger: logger, close: db.Close}, nil
}

func (a *app) users() service.UserService {
	return service.NewUserService(a.repos.Users, a.catalog)
}

func createAdminCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "create-admin <email>",
		Short: "Create an administrator account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			user, temporary, err := a.users().Create(ctx, service.CreateUserInput{
				Email:    args[0],
				Password: password,
				Plan:     domain.PlanAdmin,
				Status:   domain.UserStatusActive,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", user.Email, user.ID)
			if temporary != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "temporary password: %s\n", temporary)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (generated when empty)")
	return cmd
}

func grantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant <email> <page>...",
		Short: "Grant extra pages to a member",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return changePages(cmd, args[0], args[1:], true)
		},
	}
}

func revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <email> <page>...",
		Short: "Remove pages previously granted to a member",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return changePages(cmd, args[0], args[1:], false)
		},
	}
}

func changePages(cmd *cobra.Command, email string, pages []string, grant bool) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	user, err := a.repos.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("find %s: %w", email, err)
	}

	users := a.users()
	if grant {
		user, err = users.Grant(ctx, user.ID, pages)
	} else {
		user, err = users.Revoke(ctx, user.ID, pages)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s custom pages: %s\n", user.Email, strings.Join(user.CustomPermissions, ", "))
	fmt.Fprintf(cmd.OutOrStdout(), "%s can open: %s\n", user.Email, strings.Join(a.catalog.Resolve(user, time.Now()), ", "))
	return nil
}

func pagesCmd() *cobra.Command {
	var plan string
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "List the page catalog, or the pages of one plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			catalog := permissions.Default()
			if cfg.Permissions.CatalogPath != "" {
				if catalog, err = permissions.Load(cfg.Permissions.CatalogPath); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if plan != "" {
				p := domain.Plan(strings.ToUpper(plan))
				if !p.Valid() {
					return fmt.Errorf("unknown plan %q", plan)
				}
				printList(out, catalog.PlanPages(p))
				return nil
			}
			for _, p := range domain.Plans {
				fmt.Fprintf(out, "%s:\n", p)
				printList(out, catalog.PlanPages(p))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&plan, "plan", "", "Only list pages for this plan")
	return cmd
}

func printList(out io.Writer, items []string) {
	for _, item := range items {
		fmt.Fprintf(out, "  - %s\n", item)
	}
}

func importProventosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-proventos <file.csv>",
		Short: "Import dividends from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			svc := service.NewProventoService(a.repos.Proventos, service.ImportConfig{
				ChunkSize:  a.cfg.Proventos.ChunkSize,
				ChunkDelay: time.Duration(a.cfg.Proventos.ChunkDelayMS) * time.Millisecond,
			}, a.logger)
			result, err := svc.Import(ctx, f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rows: %d inserted: %d duplicates: %d failed: %d\n",
				result.Rows, result.Inserted, result.Duplicates, result.Failed)
			for _, rowErr := range result.Errors {
				fmt.Fprintf(out, "  line %d %s: %s\n", rowErr.Line, rowErr.Ticker, rowErr.Message)
			}
			return nil
		},
	}
}
