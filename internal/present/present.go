package present

import (
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/lcalzada-xor/phishguard/internal/model"
)

// Fixed user-facing messages.
const (
	CheckingMessage   = "⏳ Checking..."
	PanelErrorMessage = "❌ API not reachable. Start the classification server!"
	AutoErrorMessage  = "❌ Could not check this URL. Is the API running?"
)

// Severity is the verdict signal derived from a response label.
type Severity int

const (
	SeveritySafe Severity = iota
	SeverityThreat
)

func (s Severity) String() string {
	switch s {
	case SeverityThreat:
		return "threat"
	default:
		return "safe"
	}
}

// Color returns the panel color used for the severity.
func (s Severity) Color() string {
	if s == SeverityThreat {
		return "red"
	}
	return "green"
}

// Result is the formatted form of a classification response.
type Result struct {
	Verdict    string
	Icon       string
	Percentage string
	Severity   Severity
}

// Present formats a response. The severity depends on the label only.
func Present(resp model.ClassificationResponse) Result {
	res := Result{
		Verdict:    "Safe!",
		Icon:       "✅",
		Percentage: FormatPercentage(resp.ProbPhishing),
		Severity:   SeveritySafe,
	}
	if resp.Phishing() {
		res.Verdict = "Phishing!"
		res.Icon = "🚨"
		res.Severity = SeverityThreat
	}
	return res
}

// FormatPercentage renders a probability as a percentage with two decimals.
// Ties round away from zero on the exact value of prob*100.
func FormatPercentage(prob float64) string {
	pct := prob * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return strconv.FormatFloat(pct, 'f', 2, 64) + "%"
	}

	cents := new(big.Float).SetPrec(128).SetFloat64(math.Abs(pct))
	cents.Mul(cents, big.NewFloat(100))
	cents.Add(cents, big.NewFloat(0.5))
	n, _ := cents.Int(nil)

	whole, frac := new(big.Int).QuoRem(n, big.NewInt(100), new(big.Int))
	sign := ""
	if pct < 0 && n.Sign() != 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%s.%02d%%", sign, whole.String(), frac.Int64())
}

// Headline returns the icon followed by the verdict.
func (r Result) Headline() string {
	return r.Icon + " " + r.Verdict
}

// Notification is the text of the blocking page-level notification.
func (r Result) Notification() string {
	return fmt.Sprintf("%s\nPhishing probability: %s", r.Headline(), r.Percentage)
}

// View converts the result into the panel representation.
func (r Result) View() View {
	state := StateSafe
	if r.Severity == SeverityThreat {
		state = StateThreat
	}
	return View{
		State:    state,
		Headline: r.Headline(),
		Detail:   "Probability: " + r.Percentage,
		Color:    r.Severity.Color(),
	}
}
