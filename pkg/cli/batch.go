package cli

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/mchmarny/loanscore/pkg/data"
	"github.com/mchmarny/loanscore/pkg/loan"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const concurrencyFlag = "concurrency"

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Score every application in a CSV file",
		UsageText: `loanscore batch --input applicants.csv
   loanscore batch --input applicants.csv --defaults --concurrency 4 --format table`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     inputFileFlag,
				Aliases:  []string{"i"},
				Usage:    "Path to a CSV file, header row holds the feature names",
				Required: true,
			},
			&cli.IntFlag{
				Name:  concurrencyFlag,
				Usage: "Number of rows scored in parallel (default: number of CPUs)",
			},
			defaultsFlagDef(),
		},
		Action: cmdBatch,
	}
}

// BatchItem is the outcome of one CSV row. Row is 1-based and excludes the
// header.
type BatchItem struct {
	Row             int           `json:"row" yaml:"row"`
	ID              string        `json:"id,omitempty" yaml:"id,omitempty"`
	Probability     float64       `json:"probability" yaml:"probability"`
	ProbabilityText string        `json:"probability_text" yaml:"probability_text"`
	Decision        loan.Decision `json:"decision" yaml:"decision"`
}

type batchItems []*BatchItem

func (b batchItems) writeTable(w io.Writer) error {
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "ROW\tPROBABILITY\tDECISION\tID")
	for _, it := range b {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", it.Row, it.ProbabilityText, it.Decision, formatValue(nilIfEmpty(it.ID)))
	}
	return tw.Flush()
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func cmdBatch(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	path := cmd.String(inputFileFlag)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	records, err := readCSVRecords(f, cfg.Predictor.Schema(), cmd.Bool(defaultsFlag))
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	items, err := cfg.scoreBatch(ctx, records, int(cmd.Int(concurrencyFlag)))
	if err != nil {
		return err
	}
	slog.Debug("batch scored", "file", path, "rows", len(items))
	return cfg.encode(batchItems(items))
}

// scoreBatch scores records concurrently. Results keep input order. When
// rows fail, the lowest failing row is reported and nothing is recorded.
func (c *appConfig) scoreBatch(ctx context.Context, records []loan.Record, limit int) ([]*BatchItem, error) {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	results := make([]*loan.Result, len(records))
	errs := make([]error, len(records))

	var firstBad atomic.Int64
	firstBad.Store(int64(len(records)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, r := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// rows after a known failure cannot change the reported row
			if int64(i) > firstBad.Load() {
				return nil
			}
			res, err := c.Predictor.Predict(r)
			if err != nil {
				errs[i] = fmt.Errorf("row %d: %w", i+1, err)
				for {
					cur := firstBad.Load()
					if int64(i) >= cur || firstBad.CompareAndSwap(cur, int64(i)) {
						break
					}
				}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	items := make([]*BatchItem, len(results))
	var list []*data.Assessment
	for i, res := range results {
		items[i] = &BatchItem{
			Row:             i + 1,
			Probability:     res.Probability,
			ProbabilityText: loan.FormatProbability(res.Probability),
			Decision:        res.Decision,
		}
		if c.Store != nil {
			a := data.NewAssessment(c.Artifact.ModelVersion(), data.SourceBatch, res)
			items[i].ID = a.ID
			list = append(list, a)
		}
	}

	if c.Store != nil {
		if err := c.Store.SaveAll(ctx, list); err != nil {
			return nil, fmt.Errorf("saving batch assessments: %w", err)
		}
	}
	return items, nil
}

// readCSVRecords turns CSV rows into records. Empty cells are treated as
// missing values.
func readCSVRecords(r io.Reader, s *loan.Schema, defaults bool) ([]loan.Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var list []loan.Record
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		rec := loan.Record{}
		if defaults {
			rec = s.Defaults()
		}
		for i, v := range fields {
			if v = strings.TrimSpace(v); v != "" {
				rec[header[i]] = v
			}
		}
		list = append(list, rec)
	}
	return list, nil
}
