package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrMalformed reports a response that decoded as JSON but does not have the
// expected shape.
var ErrMalformed = errors.New("malformed classification response")

// ClassificationRequest is the body posted to the classification service.
type ClassificationRequest struct {
	URL string `json:"url"`
}

// ClassificationResponse is the verdict returned by the classification service.
type ClassificationResponse struct {
	ProbPhishing float64 `json:"prob_phishing"`
	Label        Label   `json:"label"`
}

// Phishing reports whether the server classified the URL as phishing.
func (r ClassificationResponse) Phishing() bool {
	return bool(r.Label)
}

// Label is the server verdict. The wire value may be a boolean or a number;
// any non-zero number is truthy.
type Label bool

// UnmarshalJSON accepts true/false and numeric values.
func (l *Label) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("true")):
		*l = true
		return nil
	case bytes.Equal(trimmed, []byte("false")):
		*l = false
		return nil
	}

	var n float64
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("%w: label %s is neither a number nor a boolean", ErrMalformed, trimmed)
	}
	*l = n != 0
	return nil
}

// MarshalJSON encodes the label as 0 or 1, the form the service emits.
func (l Label) MarshalJSON() ([]byte, error) {
	if l {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

type wireResponse struct {
	ProbPhishing json.RawMessage `json:"prob_phishing"`
	Label        json.RawMessage `json:"label"`
}

// DecodeResponse parses and validates a response body. Errors caused by the
// body not being JSON are returned as-is; shape problems wrap ErrMalformed.
func DecodeResponse(body []byte) (ClassificationResponse, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return ClassificationResponse{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return ClassificationResponse{}, err
	}

	if isAbsent(wire.ProbPhishing) {
		return ClassificationResponse{}, fmt.Errorf("%w: missing prob_phishing", ErrMalformed)
	}
	raw := bytes.TrimSpace(wire.ProbPhishing)
	prob, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(prob) || math.IsInf(prob, 0) {
		return ClassificationResponse{}, fmt.Errorf("%w: prob_phishing %s is not a finite number", ErrMalformed, raw)
	}
	if prob < 0 || prob > 1 {
		return ClassificationResponse{}, fmt.Errorf("%w: prob_phishing %v outside [0, 1]", ErrMalformed, prob)
	}
	if prob == 0 {
		// -0 is accepted as zero.
		prob = 0
	}

	if isAbsent(wire.Label) {
		return ClassificationResponse{}, fmt.Errorf("%w: missing label", ErrMalformed)
	}
	var label Label
	if err := label.UnmarshalJSON(wire.Label); err != nil {
		return ClassificationResponse{}, err
	}

	return ClassificationResponse{ProbPhishing: prob, Label: label}, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
