package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadenrich-connector/internal/api"
	"github.com/sells-group/leadenrich-connector/internal/connector"
)

var (
	cliAPIKey string
	cliOutput string

	leadFirstName     string
	leadLastName      string
	leadCompany       string
	leadCompanyDomain string
	leadLinkedIn      string
	leadNoEmail       bool
	leadNoPhone       bool

	resultsRequestID string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit one lead and print the request id",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := initCLIService()
		if err != nil {
			return err
		}
		return runSubmit(cmd, svc, leadFromFlags())
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Submit one lead and wait for the enriched result",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := initCLIService()
		if err != nil {
			return err
		}
		return runEnrich(cmd, svc, leadFromFlags())
	},
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Fetch the status or results of a submitted lead",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := initCLIService()
		if err != nil {
			return err
		}
		return runResults(cmd, svc, connector.ResultsInput{
			Connection: cliConnection(),
			RequestID:  resultsRequestID,
		})
	},
}

func initCLIService() (*connector.Service, error) {
	if cliAPIKey != "" {
		cfg.Provider.APIKey = cliAPIKey
	}
	return initService("cli")
}

func cliConnection() connector.Connection {
	return connector.Connection{"api_key_bearer": cfg.Provider.APIKey}
}

func leadFromFlags() connector.LeadInput {
	email, phone := !leadNoEmail, !leadNoPhone
	return connector.LeadInput{
		Connection:         cliConnection(),
		FirstName:          leadFirstName,
		LastName:           leadLastName,
		Company:            leadCompany,
		CompanyDomain:      leadCompanyDomain,
		LinkedInURL:        leadLinkedIn,
		EnrichEmailAddress: &email,
		EnrichPhoneNumber:  &phone,
	}
}

func runSubmit(cmd *cobra.Command, svc api.Enricher, in connector.LeadInput) error {
	sub, err := svc.Submit(cmd.Context(), in)
	if err != nil {
		return reportError(cmd, err)
	}
	return printResult(cmd.OutOrStdout(), cliOutput, api.SubmitEnvelope(sub))
}

func runEnrich(cmd *cobra.Command, svc api.Enricher, in connector.LeadInput) error {
	ctx := cmd.Context()
	if d := cfg.Server.HandlerTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	res, err := svc.EnrichSync(ctx, in)
	if err != nil {
		return reportError(cmd, err)
	}
	return printResult(cmd.OutOrStdout(), cliOutput, api.SyncEnvelope(res))
}

func runResults(cmd *cobra.Command, svc api.Enricher, in connector.ResultsInput) error {
	f, err := svc.Results(cmd.Context(), in)
	if err != nil {
		return reportError(cmd, err)
	}
	return printResult(cmd.OutOrStdout(), cliOutput, api.ResultsEnvelope(f))
}

// reportError prints the error body in the selected format and returns err
// with cobra's own error line suppressed.
func reportError(cmd *cobra.Command, err error) error {
	_, body := api.ErrorEnvelope(err)
	if perr := printResult(cmd.ErrOrStderr(), cliOutput, body); perr != nil {
		return err
	}
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return err
}

func init() {
	for _, c := range []*cobra.Command{submitCmd, enrichCmd, resultsCmd} {
		c.Flags().StringVar(&cliAPIKey, "api-key", "", "BetterContact API key (default from config)")
		c.Flags().StringVarP(&cliOutput, "output", "o", "json", "output format: json or yaml")
		rootCmd.AddCommand(c)
	}

	for _, c := range []*cobra.Command{submitCmd, enrichCmd} {
		c.Flags().StringVar(&leadFirstName, "first-name", "", "lead first name")
		c.Flags().StringVar(&leadLastName, "last-name", "", "lead last name")
		c.Flags().StringVar(&leadCompany, "company", "", "company name")
		c.Flags().StringVar(&leadCompanyDomain, "company-domain", "", "company domain")
		c.Flags().StringVar(&leadLinkedIn, "linkedin-url", "", "LinkedIn profile URL")
		c.Flags().BoolVar(&leadNoEmail, "no-email", false, "skip email enrichment")
		c.Flags().BoolVar(&leadNoPhone, "no-phone", false, "skip phone enrichment")
	}

	resultsCmd.Flags().StringVar(&resultsRequestID, "request-id", "", "request id returned by submit")
}
