package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/netbill/backend/internal/domain/rating"
)

type quoteOptions struct {
	planPath  string
	up        string
	down      string
	bandwidth string
	session   time.Duration
	at        string
	json      bool
}

func newQuoteCmd() *cobra.Command {
	var opts quoteOptions

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a usage sample against a rate plan file",
		Example: `  billingctl quote --plan plan.yaml --up 1GiB --down 12GiB --peak 80Mbps --session 36h
  billingctl quote --plan plan.yaml --down 500MB --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := LoadPlan(opts.planPath)
			if err != nil {
				return fmt.Errorf("%s: %w", opts.planPath, err)
			}
			usage, err := opts.usage()
			if err != nil {
				return err
			}
			at := time.Now().UTC()
			if opts.at != "" {
				if at, err = parseDate(opts.at, at); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}

			quote, err := rating.NewEngine().Breakdown(plan, usage, at)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(newQuoteJSON(plan, usage, quote))
			}
			fmt.Fprintln(out, renderQuote(plan, usage, quote))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.planPath, "plan", "", "Rate plan YAML file")
	f.StringVar(&opts.up, "up", "0", "Upload traffic, e.g. 750MiB")
	f.StringVar(&opts.down, "down", "0", "Download traffic, e.g. 12GiB")
	f.StringVar(&opts.bandwidth, "peak", "0", "Peak bandwidth, e.g. 80Mbps")
	f.DurationVar(&opts.session, "session", 0, "Session duration, e.g. 36h")
	f.StringVar(&opts.at, "at", "", "Quote time (YYYY-MM-DD or RFC 3339), default now")
	f.BoolVar(&opts.json, "json", false, "Print the breakdown as JSON")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func (o quoteOptions) usage() (rating.UsageSample, error) {
	up, err := ParseBytes(o.up)
	if err != nil {
		return rating.UsageSample{}, fmt.Errorf("--up: %w", err)
	}
	down, err := ParseBytes(o.down)
	if err != nil {
		return rating.UsageSample{}, fmt.Errorf("--down: %w", err)
	}
	peak, err := ParseBandwidth(o.bandwidth)
	if err != nil {
		return rating.UsageSample{}, fmt.Errorf("--peak: %w", err)
	}
	return rating.NewUsageSample(up, down, peak, int64(o.session/time.Second))
}

type quoteLineJSON struct {
	Kind     rating.RateKind `json:"kind"`
	Quantity int64           `json:"quantity"`
	Amount   string          `json:"amount"`
}

type quoteJSON struct {
	Plan     string          `json:"plan"`
	Currency string          `json:"currency"`
	At       time.Time       `json:"at"`
	Usage    string          `json:"usage"`
	Lines    []quoteLineJSON `json:"lines"`
	Total    string          `json:"total"`
	Minor    int64           `json:"total_minor_units"`
}

func newQuoteJSON(plan *rating.RatePlan, usage rating.UsageSample, q rating.Quote) quoteJSON {
	out := quoteJSON{
		Plan:     plan.Name,
		Currency: plan.Currency.String(),
		At:       q.At,
		Usage:    usage.String(),
		Total:    q.Total.Amount(),
		Minor:    q.Total.MinorUnits(),
	}
	for _, l := range q.Lines {
		out.Lines = append(out.Lines, quoteLineJSON{Kind: l.Kind, Quantity: l.Quantity, Amount: l.Amount.Amount()})
	}
	return out
}
