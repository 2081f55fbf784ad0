package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/asn-portal/internal/adapters/mcp"
	"github.com/kirillkom/asn-portal/internal/bootstrap"
	"github.com/kirillkom/asn-portal/internal/config"
	"github.com/kirillkom/asn-portal/internal/core/ports"
	"github.com/kirillkom/asn-portal/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/asn-portal/internal/observability/logging"
)

type rootOptions struct {
	withDB     bool
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "verifyctl",
		Short:         "Operator tools for ASN document verification",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.withDB, "with-db", false, "Connect to Postgres for applicant and formasi lookups")
	root.PersistentFlags().BoolVarP(&opts.jsonOutput, "json", "j", false, "Output as JSON")

	root.AddCommand(
		newVerifyCmd(opts),
		newChecklistCmd(opts),
		newRequirementsCmd(opts),
		newMCPCmd(opts),
	)
	return root
}

func (o *rootOptions) app(ctx context.Context, verifier bool) (*bootstrap.App, error) {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "verifyctl", cfg.LogLevel))
	return bootstrap.New(ctx, cfg, bootstrap.Options{
		Database: o.withDB,
		Verifier: verifier,
	})
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	var documentType string
	cmd := &cobra.Command{
		Use:   "verify <image>",
		Short: "Verify a document image and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			app, err := opts.app(ctx, true)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := mcpadapter.VerifyFile(ctx, app.Verifier, args[0], documentType)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "verdict:    %s (score %.4f)\n", report.Verdict.Status, report.Verdict.Score)
			fmt.Fprintf(out, "ocr:        %s confidence %.2f degraded=%t\n", report.OCR.Provider, report.OCR.Confidence, report.OCR.Degraded)
			fmt.Fprintf(out, "complete:   %.0f%%\n", report.Analysis.Analysis.Completeness*100)
			fmt.Fprintf(out, "suspicious: %t (%.2f)\n", report.Fraud.IsSuspicious, report.Fraud.Confidence)
			for _, reason := range report.Verdict.Reasons {
				fmt.Fprintf(out, "  - %s\n", reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&documentType, "type", "t", "ktp", "Declared document type (ktp, ijazah, transkrip, kk)")
	return cmd
}

func newChecklistCmd(opts *rootOptions) *cobra.Command {
	var (
		requestFile string
		applicantID string
		formasiID   string
		xlsxPath    string
	)
	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Evaluate the requirement checklist for an applicant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := checklistRequest(requestFile, applicantID, formasiID)
			if err != nil {
				return err
			}

			app, err := opts.app(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Checklist.EvaluateReport(cmd.Context(), req)
			if err != nil {
				return err
			}

			if xlsxPath != "" {
				if err := writeWorkbook(xlsxPath, report); err != nil {
					return err
				}
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), report.Checklist)
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "STATUS\tREQUIREMENT\tDETAIL")
			for _, check := range report.Checklist.Checks {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", check.Status, check.Label, check.Detail)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\noverall: %s (%d%% of %d checks passed)\n",
				report.Checklist.Overall, report.Checklist.Score, report.Checklist.TotalChecks)
			return nil
		},
	}
	cmd.Flags().StringVarP(&requestFile, "file", "f", "", "JSON checklist request ({applicant|applicantId, formasi|formasiId, documents}); - for stdin")
	cmd.Flags().StringVar(&applicantID, "applicant-id", "", "Applicant id (requires --with-db)")
	cmd.Flags().StringVar(&formasiID, "formasi-id", "", "Formasi id (requires --with-db)")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the checklist workbook to this path")
	return cmd
}

func checklistRequest(path, applicantID, formasiID string) (ports.ChecklistRequest, error) {
	var req ports.ChecklistRequest
	if path != "" {
		var (
			raw []byte
			err error
		)
		if path == "-" {
			raw, err = io.ReadAll(os.Stdin)
		} else {
			raw, err = os.ReadFile(path)
		}
		if err != nil {
			return req, fmt.Errorf("read checklist request: %w", err)
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return req, fmt.Errorf("decode checklist request: %w", err)
		}
	}
	if applicantID != "" {
		req.ApplicantID = applicantID
	}
	if formasiID != "" {
		req.FormasiID = formasiID
	}
	if req.Applicant == nil && req.ApplicantID == "" {
		return req, errors.New("either --file with an applicant or --applicant-id is required")
	}
	return req, nil
}

func writeWorkbook(path string, report *ports.ChecklistReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	if err := xlsx.WriteChecklist(f, xlsx.Report{
		Applicant:   report.Applicant,
		Formasi:     report.Formasi,
		Checklist:   report.Checklist,
		GeneratedAt: time.Now().UTC(),
	}); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func newRequirementsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "requirements",
		Short: "List the active requirement set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.app(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			reqs := app.Checklist.Requirements()
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), reqs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tCATEGORY\tLABEL")
			for _, r := range reqs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Rule.Kind(), r.Category, r.Label)
			}
			return tw.Flush()
		},
	}
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve verify_document and evaluate_checklist as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.app(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			return mcpadapter.NewTools(app.Verifier, app.Checklist).ServeStdio()
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
