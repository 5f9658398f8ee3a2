package main

import (
	"encoding/json"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/internal/pipeline"
)

var (
	enhanceCompanyID string
	enhanceName      string
	enhanceBrand     string
	enhanceIndustry  string
	enhanceUser      string
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Enhance a single company and print its tearsheet",
	Example: `  company-intel enhance --company-id 12345 --user u-1
  company-intel enhance --name "Northland Cellars LLC" --brand Northland --user u-1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnhancer(ctx, "enhance")
		if err != nil {
			return err
		}
		defer env.Close()

		outcome, err := env.Enhancer.Enhance(ctx, pipeline.EnhanceRequest{
			CompanyID:    enhanceCompanyID,
			CompanyName:  enhanceName,
			BrandHint:    enhanceBrand,
			IndustryHint: enhanceIndustry,
			UserID:       enhanceUser,
		})
		if outcome == nil {
			return eris.Wrap(err, "enhance")
		}
		if err != nil {
			// The run finished and was charged; only the write failed.
			zap.L().Error("enhance: record not persisted", zap.Error(err))
		}
		return writeOutcome(cmd.OutOrStdout(), outcome)
	},
}

// outcomeView is the printed form of a pipeline.Outcome.
type outcomeView struct {
	Result           string           `json:"result"`
	Charged          bool             `json:"charged"`
	Persisted        bool             `json:"persisted"`
	CreditsRemaining *int             `json:"credits_remaining,omitempty"`
	Tearsheet        *model.Tearsheet `json:"tearsheet,omitempty"`
}

func viewOutcome(o pipeline.Outcome) outcomeView {
	switch o := o.(type) {
	case pipeline.CacheHit:
		return outcomeView{Result: "cache_hit", Persisted: true, Tearsheet: &o.Tearsheet}
	case pipeline.PaymentRequired:
		credits := o.Credits
		return outcomeView{Result: "payment_required", CreditsRemaining: &credits}
	case pipeline.Completed:
		v := outcomeView{
			Result:    "completed",
			Charged:   o.Charged,
			Persisted: o.Persisted,
			Tearsheet: &o.Tearsheet,
		}
		if o.Charged {
			remaining := o.CreditsRemaining
			v.CreditsRemaining = &remaining
		}
		return v
	default:
		return outcomeView{Result: "unknown"}
	}
}

func writeOutcome(w io.Writer, o pipeline.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(viewOutcome(o))
}

func init() {
	enhanceCmd.Flags().StringVar(&enhanceCompanyID, "company-id", "", "filer id in the filings database")
	enhanceCmd.Flags().StringVar(&enhanceName, "name", "", "legal company name (skips the identity lookup)")
	enhanceCmd.Flags().StringVar(&enhanceBrand, "brand", "", "brand hint")
	enhanceCmd.Flags().StringVar(&enhanceIndustry, "industry", "", "industry hint")
	enhanceCmd.Flags().StringVar(&enhanceUser, "user", "", "user id to charge (required)")
	_ = enhanceCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(enhanceCmd)
}
