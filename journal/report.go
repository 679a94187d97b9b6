package journal

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// RunReport is the Org-mode write-up of one finished run.
type RunReport struct {
	RunSummary

	Predictor string
	Dataset   string
	Created   time.Time

	Trades []TransactionRecord

	Notes       []string
	NextActions []string
}

var printer = message.NewPrinter(language.English)

// Money formats x as dollars rounded half away from zero to cents, with
// thousands separators: -1234.565 becomes "-$1,234.57".
func Money(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "n/a"
	}
	cents := decimal.NewFromFloat(x).Round(2)
	sign := ""
	if cents.IsNegative() {
		sign = "-"
		cents = cents.Neg()
	}
	v, _ := cents.Float64()
	return sign + printer.Sprintf("$%.2f", v)
}

var reportFuncs = template.FuncMap{
	"money": Money,
	"pct":   func(x float64) string { return printer.Sprintf("%.2f%%", x) },
	"mul100": func(x float64) float64 {
		return x * 100.0
	},
	"tickerPct": func(a TickerAccuracy) float64 {
		return a.Accuracy() * 100.0
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "(open)"
		}
		return t.Format(time.DateOnly)
	},
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var (
	runTmpl     = template.Must(template.New("run").Funcs(reportFuncs).Parse(RunOrgTemplate))
	compareTmpl = template.Must(template.New("compare").Funcs(reportFuncs).Parse(CompareOrgTemplate))
)

// Render writes the report as an Org subtree.
func (r RunReport) Render(w io.Writer) error {
	return runTmpl.Execute(w, r)
}

// WriteOrg renders the report to path, creating parent directories.
func (r RunReport) WriteOrg(path string) error {
	buf := new(bytes.Buffer)
	if err := r.Render(buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// RenderComparison writes a side by side Org table of several runs.
func RenderComparison(w io.Writer, runs []RunSummary) error {
	return compareTmpl.Execute(w, runs)
}

const RunOrgTemplate = `* BACKTEST: {{.Strategy}} {{range $i, $t := .Tickers}}{{if $i}},{{end}}{{$t}}{{end}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Strategy}}
:STATUS:      {{.Status}}
:PREDICTOR:   {{if .Predictor}}{{.Predictor}}{{else}}(predictor?){{end}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{date .Start}}
:END_DATE:    {{date .End}}
:HORIZON:     {{.Horizon}}
:START_BAL:   {{printf "%.2f" .InitialCapital}}
:END_BAL:     {{printf "%.2f" .FinalValue}}
:NET_PL:      {{printf "%.2f" .TotalReturn}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDrawdownPct}}
:TRADES:      {{.Sells}}
:WINS:        {{.ProfitableTrades}}
:LOSSES:      {{.LosingTrades}}
:ACCURACY:    {{printf "%.2f" (mul100 .Accuracy)}}
:PREDICTIONS: {{.CorrectPredictions}}/{{.TotalPredictions}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:
{{- if .Error}}

Run failed: ={{.Error}}=
{{- end}}

** Parameters
| Parameter        | Value |
|------------------+-------|
| Initial capital  | {{money .InitialCapital}} |
| Commission %     | {{printf "%.3f" (mul100 .Commission)}} |
| Horizon (days)   | {{.Horizon}} |

** Performance Summary
- Final value:      *{{money .FinalValue}}*
- Net P/L:          *{{money .TotalReturn}}*
- Return:           *{{pct .ReturnPct}}*
- Max Drawdown:     *{{pct .MaxDrawdownPct}}*
- Accuracy:         *{{pct (mul100 .Accuracy)}}* ({{.CorrectPredictions}} of {{.TotalPredictions}} predictions)
- Trade P/L:        *{{money .TotalPL}}* (best {{money .BestTrade}}, worst {{money .WorstTrade}})

** Trade Distribution
| Outcome      | Count |
|--------------+-------|
| Profitable   | {{.ProfitableTrades}} |
| Losing       | {{.LosingTrades}} |
| Buys         | {{.Buys}} |
| Sells        | {{.Sells}} |
| Transactions | {{.Transactions}} |

{{- if .TickerAccuracy}}

** Model Accuracy
| Ticker | Correct | Total | Accuracy % |
|--------+---------+-------+------------|
{{- range .TickerAccuracy}}
| {{.Ticker}} | {{.Correct}} | {{.Total}} | {{printf "%.2f" (tickerPct .)}} |
{{- end}}
{{- end}}

{{- if .Positions}}

** Open Positions
| Ticker | Shares | Avg | Price | P/L |
|--------+--------+-----+-------+-----|
{{- range .Positions}}
| {{.Ticker}} | {{.Shares}} | {{printf "%.2f" .AvgPrice}} | {{printf "%.2f" .CurrentPrice}} | {{money .UnrealizedPL}} |
{{- end}}
{{- end}}

{{- if .Trades}}

** Transactions
| Date | Action | Ticker | Shares | Price | Amount |
|------+--------+--------+--------+-------+--------|
{{- range .Trades}}
| {{date .Date}} | {{.Action}} | {{.Ticker}} | {{.Shares}} | {{printf "%.2f" .Price}} | {{money .TotalAmount}} |
{{- end}}
{{- end}}

{{- if .Notes}}

** Observations
{{- range .Notes}}
- {{.}}
{{- end}}
{{- end}}

{{- if .NextActions}}

** Notes / Next Actions
{{- range .NextActions}}
- [ ] {{.}}
{{- end}}
{{- end}}
`

const CompareOrgTemplate = `* STRATEGY COMPARISON
| Strategy | Status | Final value | Return % | Max DD % | Trades | Win | Loss | Accuracy % | Predictions |
|----------+--------+-------------+----------+----------+--------+-----+------+------------+-------------|
{{- range .}}
| {{.Strategy}} | {{.Status}} | {{money .FinalValue}} | {{printf "%.2f" .ReturnPct}} | {{printf "%.2f" .MaxDrawdownPct}} | {{.Sells}} | {{.ProfitableTrades}} | {{.LosingTrades}} | {{printf "%.2f" (mul100 .Accuracy)}} | {{.CorrectPredictions}}/{{.TotalPredictions}} |
{{- end}}
`
