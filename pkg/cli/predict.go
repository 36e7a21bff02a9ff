package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/loanscore/pkg/data"
	"github.com/mchmarny/loanscore/pkg/loan"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	setFlag       = "set"
	inputFileFlag = "input"
	defaultsFlag  = "defaults"
)

func defaultsFlagDef() cli.Flag {
	return &cli.BoolFlag{
		Name:  defaultsFlag,
		Usage: "Fill features not provided with their schema defaults",
	}
}

func predictCommand() *cli.Command {
	return &cli.Command{
		Name:  "predict",
		Usage: "Score a loan application",
		UsageText: `loanscore predict --set Age=35 --set Annual_Income=85000 ...
   loanscore predict --input applicant.yaml
   loanscore predict --defaults --set Credit_Score=640`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    setFlag,
				Aliases: []string{"s"},
				Usage:   "Feature value as Name=value (repeatable)",
			},
			&cli.StringFlag{
				Name:    inputFileFlag,
				Aliases: []string{"i"},
				Usage:   "Path to a yaml or json file with the applicant record",
			},
			defaultsFlagDef(),
		},
		Action: cmdPredict,
	}
}

func explainCommand() *cli.Command {
	return &cli.Command{
		Name:   "explain",
		Usage:  "Show model coefficients and odds ratios",
		Action: cmdExplain,
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:   "schema",
		Usage:  "List the features the model expects",
		Action: cmdSchema,
	}
}

// Prediction is the printed outcome of one record.
type Prediction struct {
	ID              string                `json:"id,omitempty" yaml:"id,omitempty"`
	Probability     float64               `json:"probability" yaml:"probability"`
	ProbabilityText string                `json:"probability_text" yaml:"probability_text"`
	Decision        loan.Decision         `json:"decision" yaml:"decision"`
	Explanation     []loan.ExplanationRow `json:"explanation" yaml:"explanation"`
}

func newPrediction(res *loan.Result) *Prediction {
	return &Prediction{
		Probability:     res.Probability,
		ProbabilityText: loan.FormatProbability(res.Probability),
		Decision:        res.Decision,
		Explanation:     res.Explanation,
	}
}

func cmdPredict(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	r, err := buildRecord(cfg.Predictor.Schema(), cmd.String(inputFileFlag),
		cmd.StringSlice(setFlag), cmd.Bool(defaultsFlag))
	if err != nil {
		return err
	}

	p, err := cfg.assess(ctx, r, data.SourceCLI)
	if err != nil {
		return err
	}
	return cfg.encode(p)
}

func cmdExplain(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	rows, err := cfg.Predictor.Explain()
	if err != nil {
		return fmt.Errorf("explaining model: %w", err)
	}
	return cfg.encode(explanation(rows))
}

func cmdSchema(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	return cfg.encode(newSchemaView(cfg.Artifact.ModelVersion(), cfg.Predictor.Schema()))
}

// assess scores a record and records the outcome when history is enabled.
func (c *appConfig) assess(ctx context.Context, r loan.Record, source string) (*Prediction, error) {
	res, err := c.Predictor.Predict(r)
	if err != nil {
		return nil, err
	}
	p := newPrediction(res)

	if c.Store != nil {
		a := data.NewAssessment(c.Artifact.ModelVersion(), source, res)
		if err := c.Store.Save(ctx, a); err != nil {
			return nil, fmt.Errorf("saving assessment: %w", err)
		}
		p.ID = a.ID
		slog.Debug("assessment saved", "id", a.ID, "source", source)
	}
	return p, nil
}

// buildRecord merges defaults, then the input file, then --set values.
func buildRecord(s *loan.Schema, path string, sets []string, defaults bool) (loan.Record, error) {
	r := loan.Record{}
	if defaults {
		r = s.Defaults()
	}

	if path != "" {
		fr, err := readRecordFile(path)
		if err != nil {
			return nil, err
		}
		for k, v := range fr {
			r[k] = v
		}
	}

	for _, kv := range sets {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set value %q, expected Name=value", kv)
		}
		r[k] = strings.TrimSpace(v)
	}

	return r, nil
}

func readRecordFile(path string) (loan.Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input file %s: %w", path, err)
	}

	var r loan.Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		d := json.NewDecoder(bytes.NewReader(b))
		d.UseNumber()
		if err := d.Decode(&r); err != nil {
			return nil, fmt.Errorf("parsing input file %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("parsing input file %s: %w", path, err)
		}
	}
	if r == nil {
		r = loan.Record{}
	}
	return r, nil
}
