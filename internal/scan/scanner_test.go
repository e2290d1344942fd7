package scan

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lcalzada-xor/phishguard/internal/classify"
	"github.com/lcalzada-xor/phishguard/internal/host"
	"github.com/lcalzada-xor/phishguard/internal/host/mocks"
	"github.com/lcalzada-xor/phishguard/internal/model"
	"github.com/lcalzada-xor/phishguard/internal/network"
	"github.com/lcalzada-xor/phishguard/internal/present"
)

func TestScanVerdicts(t *testing.T) {
	tests := []struct {
		name    string
		resp    model.ClassificationResponse
		message string
	}{
		{
			name:    "phishing",
			resp:    model.ClassificationResponse{ProbPhishing: 0.87, Label: true},
			message: "🚨 Phishing!\nPhishing probability: 87.00%",
		},
		{
			name:    "safe",
			resp:    model.ClassificationResponse{ProbPhishing: 0.02, Label: false},
			message: "✅ Safe!\nPhishing probability: 2.00%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			client := mocks.NewMockClassifier(ctrl)
			page := mocks.NewMockPage(ctrl)

			const url = "https://login.example.com/"
			page.EXPECT().CurrentURL(gomock.Any()).Return(url, nil)
			client.EXPECT().Classify(gomock.Any(), url).Return(tt.resp, nil).Times(1)
			page.EXPECT().Alert(gomock.Any(), tt.message).Return(nil).Times(1)

			out := New(client).Scan(context.Background(), page)
			assert.Equal(t, url, out.URL)
			assert.Equal(t, tt.message, out.Message)
			assert.NoError(t, out.Err)
			assert.False(t, out.Skipped)
		})
	}
}

func TestScanServiceUnreachable(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClassifier(ctrl)
	page := mocks.NewMockPage(ctrl)

	failure := &classify.Error{Kind: classify.KindNetwork, URL: "https://example.com/", Err: errors.New("connection refused")}

	page.EXPECT().CurrentURL(gomock.Any()).Return("https://example.com/", nil)
	client.EXPECT().Classify(gomock.Any(), "https://example.com/").Return(model.ClassificationResponse{}, failure).Times(1)
	page.EXPECT().Alert(gomock.Any(), present.AutoErrorMessage).Return(nil)

	var out Outcome
	require.NotPanics(t, func() {
		out = New(client).Scan(context.Background(), page)
	})
	assert.Equal(t, present.AutoErrorMessage, out.Message)
	assert.ErrorIs(t, out.Err, classify.ErrNetworkFailure)
}

func TestScanMalformedResponseUsesFallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClassifier(ctrl)
	page := mocks.NewMockPage(ctrl)

	failure := &classify.Error{Kind: classify.KindMalformed, URL: "https://example.com/"}

	page.EXPECT().CurrentURL(gomock.Any()).Return("https://example.com/", nil)
	client.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(model.ClassificationResponse{}, failure)
	page.EXPECT().Alert(gomock.Any(), present.AutoErrorMessage).Return(nil)

	out := New(client).Scan(context.Background(), page)
	assert.ErrorIs(t, out.Err, classify.ErrMalformedResponse)
}

func TestScanPageURLUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClassifier(ctrl)
	page := mocks.NewMockPage(ctrl)

	page.EXPECT().CurrentURL(gomock.Any()).Return("", errors.New("target detached"))
	page.EXPECT().Alert(gomock.Any(), present.AutoErrorMessage).Return(nil)

	out := New(client).Scan(context.Background(), page)
	assert.Error(t, out.Err)
}

func TestScanSkipsUnmatchedPages(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClassifier(ctrl)
	page := mocks.NewMockPage(ctrl)

	rules, err := network.CompileRules(nil)
	require.NoError(t, err)

	page.EXPECT().CurrentURL(gomock.Any()).Return("chrome://settings/", nil)

	out := New(client, WithRules(rules)).Scan(context.Background(), page)
	assert.True(t, out.Skipped)
	assert.Empty(t, out.Message)
}

func TestScanAlertFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClassifier(ctrl)
	page := mocks.NewMockPage(ctrl)

	page.EXPECT().CurrentURL(gomock.Any()).Return("https://example.com/", nil)
	client.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(model.ClassificationResponse{ProbPhishing: 0.1}, nil)
	page.EXPECT().Alert(gomock.Any(), gomock.Any()).Return(errors.New("page closed"))

	out := New(client).Scan(context.Background(), page)
	assert.NoError(t, out.Err)
	assert.Equal(t, "✅ Safe!\nPhishing probability: 10.00%", out.Message)
}

func TestWatchScansEveryPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClassifier(ctrl)

	urls := []string{"https://a.example/", "https://b.example/", "https://c.example/"}
	events := make(chan host.Page, len(urls))
	for _, u := range urls {
		page := mocks.NewMockPage(ctrl)
		page.EXPECT().CurrentURL(gomock.Any()).Return(u, nil)
		page.EXPECT().Alert(gomock.Any(), gomock.Any()).Return(nil)
		client.EXPECT().Classify(gomock.Any(), u).Return(model.ClassificationResponse{ProbPhishing: 0.5, Label: true}, nil)
		events <- page
	}
	close(events)

	var (
		mu   sync.Mutex
		seen []string
	)
	New(client).Watch(context.Background(), events, func(out Outcome) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, out.URL)
	})

	assert.ElementsMatch(t, urls, seen)
}

func TestWatchStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClassifier(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		New(client).Watch(ctx, make(chan host.Page), nil)
		close(done)
	}()
	<-done
}
