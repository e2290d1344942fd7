package present

import (
	"math"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/phishguard/internal/model"
)

func TestFormatPercentage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		prob float64
		want string
	}{
		{0, "0.00%"},
		{0.2, "20.00%"},
		{0.02, "2.00%"},
		{0.87, "87.00%"},
		{0.5, "50.00%"},
		{0.999999, "100.00%"},
		{1, "100.00%"},
		{0.28125, "28.13%"},
		{0.00125, "0.13%"},
		{0.40625, "40.63%"},
		{0.15625, "15.63%"},
		{0.00005, "0.01%"},
		{math.Copysign(0, -1), "0.00%"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatPercentage(tc.prob), "prob %v", tc.prob)
	}
}

func TestFormatPercentageAlwaysTwoDecimals(t *testing.T) {
	t.Parallel()

	pattern := regexp.MustCompile(`^\d{1,3}\.\d{2}%$`)
	for i := 0; i <= 1000; i++ {
		p := float64(i) / 1000
		got := FormatPercentage(p)
		require.Regexp(t, pattern, got, "prob %v", p)
	}
}

func TestPresentVerdicts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		resp     model.ClassificationResponse
		severity Severity
		headline string
		color    string
		state    State
	}{
		{
			name:     "phishing",
			resp:     model.ClassificationResponse{ProbPhishing: 0.87, Label: true},
			severity: SeverityThreat,
			headline: "🚨 Phishing!",
			color:    "red",
			state:    StateThreat,
		},
		{
			name:     "safe",
			resp:     model.ClassificationResponse{ProbPhishing: 0.02, Label: false},
			severity: SeveritySafe,
			headline: "✅ Safe!",
			color:    "green",
			state:    StateSafe,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Present(tc.resp)
			assert.Equal(t, tc.severity, res.Severity)
			assert.Equal(t, tc.headline, res.Headline())

			view := res.View()
			assert.Equal(t, tc.state, view.State)
			assert.Equal(t, tc.color, view.Color)
			assert.Equal(t, "Probability: "+FormatPercentage(tc.resp.ProbPhishing), view.Detail)
		})
	}
}

func TestPresentIgnoresProbabilityForSeverity(t *testing.T) {
	t.Parallel()

	// A high probability with a falsy label is still reported as safe.
	res := Present(model.ClassificationResponse{ProbPhishing: 0.99, Label: false})
	assert.Equal(t, SeveritySafe, res.Severity)

	res = Present(model.ClassificationResponse{ProbPhishing: 0.01, Label: true})
	assert.Equal(t, SeverityThreat, res.Severity)
}

func TestNotification(t *testing.T) {
	t.Parallel()

	res := Present(model.ClassificationResponse{ProbPhishing: 0.87, Label: true})
	assert.Equal(t, "🚨 Phishing!\nPhishing probability: 87.00%", res.Notification())

	zero, err := model.DecodeResponse([]byte(`{"prob_phishing": -0.0, "label": 0}`))
	require.NoError(t, err)
	assert.Equal(t, "✅ Safe!\nPhishing probability: 0.00%", Present(zero).Notification())
}

func TestFixedViews(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StateChecking, CheckingView().State)
	assert.Equal(t, CheckingMessage, CheckingView().Headline)
	assert.Equal(t, StateError, ErrorView().State)
	assert.Equal(t, PanelErrorMessage, ErrorView().Headline)
	assert.True(t, StateError.Terminal())
	assert.False(t, StateChecking.Terminal())
}
