package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/deckscan/internal/application/scanning"
	"github.com/turtacn/deckscan/internal/bootstrap"
	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deckscan/internal/infrastructure/ocr"
	recognizer "github.com/turtacn/deckscan/internal/intelligence/card_recognizer"
	"github.com/turtacn/deckscan/pkg/client"
	"github.com/turtacn/deckscan/pkg/errors"
	"github.com/turtacn/deckscan/pkg/types/scan"
)

// ScanOptions holds the flags shared by scan and evaluate.
type ScanOptions struct {
	ID       string
	Format   string
	Detailed bool
	Server   string
}

func (o *ScanOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.ID, "id", "", "scan id (default: random uuid)")
	f.StringVarP(&o.Format, "format", "f", ocr.FormatFragments, fmt.Sprintf("OCR payload format %v", ocr.Formats()))
	f.StringVar(&o.Server, "server", "", "scan on a remote API server (e.g. http://localhost:8080) instead of loading the corpus")
}

// NewScanCmd scans an OCR payload read from a file or stdin.
func NewScanCmd() *cobra.Command {
	opts := &ScanOptions{}
	cmd := &cobra.Command{
		Use:   "scan [file]",
		Short: "Recognize a deck list from OCR output",
		Long: "Reads an OCR payload from file (or stdin when file is omitted or \"-\") and prints\n" +
			"the recognized deck. With --detailed and -o json the per-fragment resolutions and\n" +
			"quantity assignments are included.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			payload, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			res, err := runScan(ctx, cliCtx, opts, payload)
			if err != nil {
				return err
			}
			return PrintResult(cmd, scanOutput{res})
		},
	}
	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "include resolutions and quantity assignments")
	return cmd
}

// runScan builds the engine from the configured corpus and scans payload once.
// With --server the payload is sent to the API instead.
func runScan(ctx context.Context, cliCtx *CLIContext, opts *ScanOptions, payload []byte) (*scanning.ScanResult, error) {
	if opts.Server != "" {
		return remoteScan(ctx, cliCtx, opts, payload)
	}

	infra, err := bootstrap.NewInfrastructure(ctx, cliCtx.Config, cliCtx.Logger)
	if err != nil {
		return nil, err
	}
	defer infra.Close()

	r, err := infra.LoadRecognizer(ctx)
	if err != nil {
		return nil, err
	}
	svc := scanning.NewService(r, scanning.Config{
		Concurrency: cliCtx.Config.Worker.Concurrency,
		MaxBatch:    cliCtx.Config.Worker.MaxBatch,
	}, infra.Metrics, cliCtx.Logger)

	return svc.Scan(ctx, &scanning.ScanRequest{
		ID:       opts.ID,
		Format:   opts.Format,
		Payload:  payload,
		Source:   scanning.SourceCLI,
		Detailed: opts.Detailed,
	})
}

func remoteScan(ctx context.Context, cliCtx *CLIContext, opts *ScanOptions, payload []byte) (*scanning.ScanResult, error) {
	c, err := client.NewClient(opts.Server,
		client.WithLogger(clientLogger{cliCtx.Logger.Named("client")}),
		client.WithTimeout(cliCtx.Timeout),
		client.WithAPIKey(os.Getenv("DECKSCAN_API_KEY")),
	)
	if err != nil {
		return nil, err
	}
	res, err := c.Scan(ctx, payload, client.ScanOptions{ID: opts.ID, Format: opts.Format, Detailed: opts.Detailed})
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Code != "" {
			return nil, errors.New(errors.ErrorCode(apiErr.Code), apiErr.Message).WithDetail(apiErr.Detail)
		}
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "remote scan failed").WithDetail(opts.Server)
	}

	out := &scanning.ScanResult{
		ScanID:      res.ScanID,
		Deck:        res.Deck,
		Cards:       res.Cards,
		DurationMS:  res.DurationMS,
		CompletedAt: res.CompletedAt,
	}
	if out.Deck == nil {
		out.Deck = scan.NewDeck()
	}
	for _, r := range res.Resolutions {
		out.Resolutions = append(out.Resolutions, recognizer.Resolution{
			Box:        r.Box,
			Text:       r.Text,
			Normalized: r.Normalized,
			Outcome:    recognizer.Outcome(r.Outcome),
			Entity:     r.Entity,
			Keyword:    r.Keyword,
			Method:     recognizer.ResolutionMethod(r.Method),
			Distance:   r.Distance,
			Reason:     r.Reason,
		})
	}
	for _, a := range res.Assignments {
		var h recognizer.MarkerHeuristic
		if err := h.UnmarshalText([]byte(a.Heuristic)); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "unexpected scan result from server")
		}
		out.Assignments = append(out.Assignments, recognizer.QuantityAssignment{
			Marker:     a.Marker,
			Box:        a.Box,
			Heuristic:  h,
			Multiplier: a.Multiplier,
			CardIndex:  a.CardIndex,
			Card:       a.Card,
		})
	}
	return out, nil
}

// clientLogger routes API client logs into the CLI logger.
type clientLogger struct {
	logger logging.Logger
}

func (l clientLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l clientLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l clientLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read input file").WithDetail(args[0])
	}
	return data, nil
}

// scanOutput prints as deck text, a pile table or the full JSON result.
type scanOutput struct {
	*scanning.ScanResult
}

func (o scanOutput) String() string { return o.Deck.String() }

func (o scanOutput) TableHeaders() []string { return []string{"PILE", "COUNT", "NAME"} }

func (o scanOutput) TableRows() [][]string { return deckRows(o.Deck) }

func deckRows(d *scan.Deck) [][]string {
	var rows [][]string
	for _, p := range []struct {
		name string
		pile *scan.Pile
	}{{"main", d.Main}, {"sideboard", d.Sideboard}} {
		for _, e := range p.pile.Entries() {
			rows = append(rows, []string{p.name, strconv.Itoa(e.Count), e.Name})
		}
	}
	return rows
}

// ─────────────────────────────────────────────────────────────────────────────
// evaluate
// ─────────────────────────────────────────────────────────────────────────────

// Mismatch is one card whose count differs between the expected and the
// recognized deck.
type Mismatch struct {
	Pile     string `json:"pile"`
	Name     string `json:"name"`
	Expected int    `json:"expected"`
	Actual   int    `json:"actual"`
}

// Evaluation scores a scan against an expected deck list.
type Evaluation struct {
	ScanID      string     `json:"scan_id"`
	Expected    int        `json:"expected"`
	Recognized  int        `json:"recognized"`
	Differences int        `json:"differences"`
	Accuracy    float64    `json:"accuracy"`
	Mismatches  []Mismatch `json:"mismatches"`
}

func (e Evaluation) String() string {
	s := fmt.Sprintf("scan %s: %d/%d cards, %d differences, accuracy %.3f\n",
		e.ScanID, e.Recognized, e.Expected, e.Differences, e.Accuracy)
	for _, m := range e.Mismatches {
		s += fmt.Sprintf("  %-9s %s: expected %d, got %d\n", m.Pile, m.Name, m.Expected, m.Actual)
	}
	return s
}

func (e Evaluation) TableHeaders() []string { return []string{"PILE", "NAME", "EXPECTED", "ACTUAL"} }

func (e Evaluation) TableRows() [][]string {
	rows := make([][]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		rows = append(rows, []string{m.Pile, m.Name, strconv.Itoa(m.Expected), strconv.Itoa(m.Actual)})
	}
	return rows
}

// Evaluate compares got against want pile by pile. Accuracy is the share of
// expected copies that were not counted as a difference, floored at zero.
func Evaluate(scanID string, want, got *scan.Deck) Evaluation {
	ev := Evaluation{
		ScanID:      scanID,
		Expected:    want.Total(),
		Recognized:  got.Total(),
		Differences: want.Diff(got),
		Mismatches:  []Mismatch{},
	}
	for _, p := range []struct {
		name      string
		want, got *scan.Pile
	}{{"main", want.Main, got.Main}, {"sideboard", want.Sideboard, got.Sideboard}} {
		names := scan.SortedNames(p.want)
		for _, n := range scan.SortedNames(p.got) {
			if p.want.Count(n) == 0 {
				names = append(names, n)
			}
		}
		for _, n := range names {
			if w, g := p.want.Count(n), p.got.Count(n); w != g {
				ev.Mismatches = append(ev.Mismatches, Mismatch{Pile: p.name, Name: n, Expected: w, Actual: g})
			}
		}
	}
	switch {
	case ev.Expected == 0 && ev.Differences == 0:
		ev.Accuracy = 1
	case ev.Expected > 0:
		ev.Accuracy = 1 - float64(ev.Differences)/float64(ev.Expected)
		if ev.Accuracy < 0 {
			ev.Accuracy = 0
		}
	}
	return ev
}

// NewEvaluateCmd scans a payload and scores it against an expected deck list.
func NewEvaluateCmd() *cobra.Command {
	opts := &ScanOptions{}
	var expected string
	var maxDiff int

	cmd := &cobra.Command{
		Use:   "evaluate [file]",
		Short: "Score a scan against an expected deck list",
		Long: "Scans the OCR payload in file (or stdin) and compares the result with the deck\n" +
			"list in --expected, written in the same \"<count> <name>\" text format that scan prints.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			f, err := os.Open(expected)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to open expected deck list").WithDetail(expected)
			}
			want, err := scan.ParseDeck(f)
			_ = f.Close()
			if err != nil {
				return err
			}

			payload, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			res, err := runScan(ctx, cliCtx, opts, payload)
			if err != nil {
				return err
			}

			ev := Evaluate(res.ScanID, want, res.Deck)
			if err := PrintResult(cmd, ev); err != nil {
				return err
			}
			if maxDiff >= 0 && ev.Differences > maxDiff {
				return errors.New(errors.ErrCodeDeckMismatch, "scan differs from the expected deck").
					WithDetail(fmt.Sprintf("%d differences, at most %d allowed", ev.Differences, maxDiff))
			}
			return nil
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVarP(&expected, "expected", "e", "", "expected deck list file")
	cmd.Flags().IntVar(&maxDiff, "max-diff", -1, "fail when the scan has more differences (negative disables)")
	_ = cmd.MarkFlagRequired("expected")
	return cmd
}
