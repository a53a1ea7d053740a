package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/lorrc/ticket-tally/internal/auth"
	"github.com/lorrc/ticket-tally/internal/config"
	"github.com/lorrc/ticket-tally/internal/core/domain"
	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
	"github.com/lorrc/ticket-tally/internal/core/ports"
	"github.com/lorrc/ticket-tally/internal/core/services"
	"github.com/lorrc/ticket-tally/internal/export"
)

func newShowCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print every recorded day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *services.TallyService) error {
				records, err := svc.Records(ctx)
				if err != nil {
					return err
				}
				return printRecords(cmd.OutOrStdout(), records, asJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newSubmitCmd(a *app) *cobra.Command {
	var (
		date     string
		sets     []string
		operator string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Record counts for a day",
		Long: `Record counts for a day. Categories not named keep their current value.

  tallyctl submit --set Bank=3 --set "Mobile Number=1"
  tallyctl submit --date 2024-01-31 --set Complaints=2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseSets(sets)
			if err != nil {
				return err
			}

			return a.withService(cmd.Context(), func(ctx context.Context, svc *services.TallyService) error {
				result, err := svc.Submit(ctx, ports.SubmitParams{
					Date:        date,
					Values:      values,
					SubmittedBy: operator,
				})
				if err != nil {
					return describeError(err)
				}

				verb := "Updated"
				if result.Action == services.ActionAppend {
					verb = "Added"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s at row %d (total %d)\n",
					verb, result.Date, result.Position, domain.CountsFromRow(result.Row).Total())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Day to record as YYYY-MM-DD (default: today)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Category=count, repeatable")
	cmd.Flags().StringVar(&operator, "operator", os.Getenv("USER"), "Name recorded with the submission")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the full table as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *services.TallyService) error {
				records, err := svc.Records(ctx)
				if err != nil {
					return err
				}

				if out == "" {
					return export.WriteCSV(cmd.OutOrStdout(), records)
				}
				if out == "." {
					out = export.Filename(svc.Today())
				}

				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := export.WriteCSV(f, records); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d rows to %s\n", records.Len(), out)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", `Output file; "." names it after today (default: stdout)`)
	return cmd
}

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print per-category statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *services.TallyService) error {
				summary, err := svc.Summary(ctx)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "%d days recorded", summary.Days)
				if summary.Days > 0 {
					fmt.Fprintf(w, " (%s to %s)", summary.FirstDate, summary.LastDate)
				}
				fmt.Fprintln(w)
				if len(summary.DuplicateDates) > 0 {
					fmt.Fprintf(w, "Dates recorded more than once: %s\n", strings.Join(summary.DuplicateDates, ", "))
				}

				t := table.New().
					Border(lipgloss.NormalBorder()).
					Headers("Category", "Total", "Mean", "Median", "Max")
				for _, c := range summary.Categories {
					t.Row(c.Category,
						fmt.Sprint(c.Total),
						fmt.Sprintf("%.2f", c.Mean),
						fmt.Sprintf("%g", c.Median),
						fmt.Sprint(c.Max))
				}
				_, err = fmt.Fprintln(w, t.Render())
				return err
			})
		},
	}
}

func newHashPasswordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for AUTH_PASSWORD_HASH",
		Long:  "Reads the password from the first line of standard input and prints its bcrypt hash.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}

			hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newTokenCmd(a *app) *cobra.Command {
	var operator string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token signed with AUTH_JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("AUTH_JWT_SECRET is not set")
			}

			token, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).GenerateToken(operator)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&operator, "operator", "", "Operator the token is issued to")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}

// parseSets turns repeated Category=count flags into raw submission values.
// Counts are validated by the service.
func parseSets(sets []string) (map[string]any, error) {
	values := make(map[string]any, len(sets))
	for _, s := range sets {
		name, count, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: want Category=count", s)
		}
		values[name] = strings.TrimSpace(count)
	}
	return values, nil
}

func printRecords(w io.Writer, records *domain.RecordSet, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records.Rows)
	}

	if records.IsEmpty() {
		_, err := fmt.Fprintln(w, "No days recorded yet.")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(records.Columns...).
		Rows(records.Table()...)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// describeError flattens validation failures into one readable line.
func describeError(err error) error {
	var verrs *apperrors.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, 0, len(verrs.Errors))
	for field := range verrs.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = field + ": " + verrs.First(field)
	}
	return fmt.Errorf("invalid submission: %s", strings.Join(parts, "; "))
}
