package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"AfriArt-Gallery/internal/catalog"
	"AfriArt-Gallery/internal/storage/mysql"
	"AfriArt-Gallery/pkg/logger"
)

func migrateCmd(configPath *string) *cobra.Command {
	var dryRun bool

	c := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending MySQL schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "mysql" {
				return fmt.Errorf("migrate 需要 storage.driver=mysql，当前为 %s", cfg.Storage.Driver)
			}
			a := &app{cfg: cfg, log: logger.Named("migrate")}
			defer a.Close()

			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			if dryRun {
				pending, err := mysql.Pending(cmd.Context(), db)
				if err != nil {
					return err
				}
				for _, m := range pending {
					fmt.Fprintf(cmd.OutOrStdout(), "pending %s\n", m.Name)
				}
				return nil
			}
			applied, err := mysql.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			for _, m := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", m.Name)
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			}
			return nil
		},
	}
	c.Flags().BoolVar(&dryRun, "dry-run", false, "list pending migrations without applying them")
	return c
}

func createAdminCmd(configPath *string) *cobra.Command {
	var name, email, password string

	c := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			account, err := a.auth.CreateAdmin(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %d <%s>\n", account.ID, account.Email)
			return nil
		},
	}
	c.Flags().StringVar(&name, "name", "", "display name (required)")
	c.Flags().StringVar(&email, "email", "", "login email (required)")
	c.Flags().StringVar(&password, "password", "", "login password (required)")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("password")
	return c
}

func seedCmd(configPath *string) *cobra.Command {
	var file string

	c := &cobra.Command{
		Use:   "seed",
		Short: "Load admins, artists, artworks and exhibitions from a YAML catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			seed, err := catalog.Load(file)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := seed.Apply(cmd.Context(), a.auth, a.gallery)
			if err != nil {
				return err
			}
			parts := []string{
				fmt.Sprintf("%d admins", report.Admins),
				fmt.Sprintf("%d artists", report.Artists),
				fmt.Sprintf("%d artworks", report.Artworks),
				fmt.Sprintf("%d exhibitions", report.Exhibitions),
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %s (%d already present)\n", strings.Join(parts, ", "), report.Skipped)
			return nil
		},
	}
	c.Flags().StringVarP(&file, "file", "f", "deploy/seed/catalog.yaml", "seed catalog file")
	return c
}
