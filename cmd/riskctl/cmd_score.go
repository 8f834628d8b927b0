package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/pipeline"
	"github.com/bibbank/loginrisk/internal/domain/port"
	"github.com/bibbank/loginrisk/internal/domain/service"
	"github.com/bibbank/loginrisk/internal/infrastructure/fingerprint"
)

// scoreInput is the document read by "riskctl score".
type scoreInput struct {
	Fingerprint *pipeline.DeterministicFingerprint `json:"fingerprint,omitempty"`
	UserAgent   string                             `json:"user_agent,omitempty"`
	Context     model.RiskContext                  `json:"context"`
	Policy      model.Policy                       `json:"policy"`
}

// scoreOutput is the offline breakdown.
type scoreOutput struct {
	TriggeredRules []string       `json:"triggered_rules"`
	Breakdown      scoreBreakdown `json:"breakdown"`
	DeviceType     string         `json:"device_type"`
	RiskLevel      string         `json:"risk_level"`
	Action         string         `json:"action"`
	RiskScore      int            `json:"risk_score"`
}

type scoreBreakdown struct {
	Device   float64 `json:"device"`
	Geo      float64 `json:"geo"`
	Network  float64 `json:"network"`
	Velocity float64 `json:"velocity"`
	ValidIP  bool    `json:"valid_ip"`
}

func newScoreCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "score [file]",
		Short: "Score a login context offline with the local rules",
		Long: `Reads a JSON document with "context" and either "fingerprint" or
"user_agent" from the file argument or stdin, and prints the local rule
assessment with its per-category breakdown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			out, err := scoreDocument(cmd.Context(), in)
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			return printScore(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "text", "output format: text or json")
	return cmd
}

func scoreDocument(ctx context.Context, r io.Reader) (scoreOutput, error) {
	var in scoreInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return scoreOutput{}, fmt.Errorf("decode input: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var device model.DeviceInfo
	switch {
	case in.Fingerprint != nil:
		device = in.Fingerprint.DeviceInfo()
	case in.UserAgent != "":
		d, err := fingerprint.UserAgentCollector{}.Collect(fingerprint.WithClientHints(ctx, fingerprint.ClientHints{UserAgent: in.UserAgent}))
		if err != nil {
			return scoreOutput{}, err
		}
		device = d
	default:
		return scoreOutput{}, errors.New(`input needs "fingerprint" or "user_agent"`)
	}

	policy := in.Policy.WithDefaults()
	weights := policy.Weights
	if weights.IsZero() {
		weights = service.DefaultRiskWeights()
	}

	scorer := service.NewWeightedScorer(service.DefaultPenalties())
	b, err := scorer.Breakdown(service.ScoreInput{Device: device, Context: in.Context}, weights)
	if err != nil {
		return scoreOutput{}, err
	}
	res, err := service.NewRuleAssessor(scorer).Assess(port.AssessmentRequest{
		Device:  device,
		Context: in.Context,
		Policy:  policy,
	})
	if err != nil {
		return scoreOutput{}, err
	}

	return scoreOutput{
		RiskScore:      res.RiskScore(),
		RiskLevel:      res.RiskLevel().String(),
		Action:         res.DecisionHint().Action.String(),
		TriggeredRules: res.TriggeredRules(),
		DeviceType:     string(device.EffectiveType()),
		Breakdown: scoreBreakdown{
			Device:   b.Device,
			Geo:      b.Geo,
			Network:  b.Network,
			Velocity: b.Velocity,
			ValidIP:  b.ValidIP,
		},
	}, nil
}

func printScore(w io.Writer, out scoreOutput) error {
	rules := "-"
	if len(out.TriggeredRules) > 0 {
		rules = strings.Join(out.TriggeredRules, ", ")
	}
	_, err := fmt.Fprintf(w, `score:    %d (%s)
action:   %s
device:   %s
rules:    %s
breakdown:
  device   %6.1f
  geo      %6.1f
  network  %6.1f
  velocity %6.1f
`,
		out.RiskScore, out.RiskLevel, out.Action, out.DeviceType, rules,
		out.Breakdown.Device, out.Breakdown.Geo, out.Breakdown.Network, out.Breakdown.Velocity)
	if err != nil {
		return err
	}
	if !out.Breakdown.ValidIP {
		_, err = fmt.Fprintln(w, "note: ip missing or unparseable, network categories not scored")
	}
	return err
}
