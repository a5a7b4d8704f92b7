package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segyhp/loan-tracker/internal/app"
	"github.com/segyhp/loan-tracker/internal/config"
	"github.com/segyhp/loan-tracker/internal/repository"
	"github.com/segyhp/loan-tracker/internal/seed"
	"github.com/segyhp/loan-tracker/pkg/logger"

	"github.com/spf13/cobra"
)

var errResetNotConfirmed = errors.New("reset deletes every loan and payment; pass --yes to confirm")

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Administer the loan tracker database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading configuration")

	open := func(cmd *cobra.Command) (*app.App, error) {
		cfg, err := config.Load(envFile)
		if err != nil {
			return nil, err
		}
		return app.New(cmd.Context(), cfg, logger.New(cfg.Logging))
	}

	cmd.AddCommand(
		migrateCmd(open),
		resetCmd(open),
		seedCmd(open),
		checkCmd(open),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

type opener func(cmd *cobra.Command) (*app.App, error)

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables, index and views if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := repository.Migrate(cmd.Context(), a.DB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func resetCmd(open opener) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every loan and payment and restart the id sequences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errResetNotConfirmed
			}

			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := repository.Reset(cmd.Context(), a.DB); err != nil {
				return err
			}
			if err := a.Cache.Invalidate(cmd.Context()); err != nil {
				a.Log.WithError(err).Warn("invalidating summary cache failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all loans and payments deleted")
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm the reset")
	return cmd
}

func seedCmd(open opener) *cobra.Command {
	var opts seed.Options

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create sample loans and pay every week already due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Loans <= 0 {
				return fmt.Errorf("--loans must be greater than 0")
			}

			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := seed.New(a.Service, a.Log).Run(cmd.Context(), opts)
			if report != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "created %d loans and %d payments\n", report.Loans, report.Payments)
			}
			return err
		},
	}

	cmd.Flags().IntVar(&opts.Loans, "loans", 20, "Number of loans to create")
	cmd.Flags().Int64Var(&opts.Seed, "seed", time.Now().UnixNano(), "Random seed; reuse it to reproduce a data set")
	cmd.Flags().IntVar(&opts.MaxAgeDays, "max-age-days", 365, "Oldest start date, in days before today")
	return cmd
}

func checkCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Ping the database and print loan and payment counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return printCheck(cmd, a)
		},
	}
}

func printCheck(cmd *cobra.Command, a *app.App) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), a.Config.Health.Timeout)
	defer cancel()

	if err := a.Service.LoanRepo.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}

	stats, err := a.Service.Stats(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "database:    ok")
	if a.Redis != nil {
		if err := a.Cache.Ping(ctx); err != nil {
			fmt.Fprintf(out, "cache:       failed: %v\n", err)
		} else {
			fmt.Fprintln(out, "cache:       ok")
		}
	} else {
		fmt.Fprintln(out, "cache:       disabled")
	}
	fmt.Fprintf(out, "loans:       %d\n", stats.Loans)
	fmt.Fprintf(out, "in progress: %d\n", stats.InProgress)
	fmt.Fprintf(out, "completed:   %d\n", stats.Completed)
	fmt.Fprintf(out, "overdue:     %d\n", stats.Overdue)
	fmt.Fprintf(out, "payments:    %d\n", stats.Payments)
	return nil
}
