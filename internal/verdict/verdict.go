// Package verdict turns free-form model output into a strict spam verdict.
//
// The model is asked to answer in one of two shapes: two plain lines
// (verdict, then reason) or a JSON object with is_spam and reason fields.
// Parsing never fails: when the answer cannot be recovered a keyword
// heuristic produces the verdict and FallbackReason is used as the reason.
package verdict

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/r-ms/detect-spam/internal/metrics"
	"github.com/r-ms/detect-spam/pkg/logging/logging"
)

// FallbackReason is the reason reported when the heuristic decided the verdict.
const FallbackReason = "Failed to get structured response from model, using heuristic instead."

// Result is a normalized verdict. It is what gets cached.
type Result struct {
	IsSpam bool   `json:"is_spam"`
	Reason string `json:"reason"`
}

// Format names the answer shape the model was asked for.
type Format string

const (
	FormatTwoLine Format = "two_line"
	FormatJSON    Format = "json"
)

// ParseFormat validates a configured format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTwoLine, FormatJSON:
		return f, nil
	case "":
		return FormatTwoLine, nil
	default:
		return "", fmt.Errorf("unknown response format %q (want %q or %q)", s, FormatTwoLine, FormatJSON)
	}
}

// Normalizer parses raw model output for one configured Format.
type Normalizer struct {
	format Format
}

func NewNormalizer(format Format) *Normalizer {
	if format == "" {
		format = FormatTwoLine
	}
	return &Normalizer{format: format}
}

// Format returns the answer shape this normalizer expects.
func (n *Normalizer) Format() Format {
	return n.format
}

// Normalize always returns a usable Result. The second return value is
// false when the heuristic fallback was used.
func (n *Normalizer) Normalize(ctx context.Context, raw string) (Result, bool) {
	var (
		res Result
		ok  bool
	)

	switch n.format {
	case FormatJSON:
		res, ok = ParseJSON(raw)
		if !ok {
			res = Heuristic(raw, true)
		}
	default:
		res, ok = ParseTwoLine(raw)
		if !ok {
			res = Heuristic(raw, false)
		}
	}

	if !ok {
		metrics.HeuristicFallbacksTotal.WithLabelValues(string(n.format)).Inc()
		logging.L(ctx).Warn("heuristic_fallback",
			zap.String("response_format", string(n.format)),
			zap.String("raw_response", logging.Truncate(raw, 200)),
			zap.Bool("is_spam", res.IsSpam),
		)
	}

	return res, ok
}

// ParseTwoLine reads the first two non-empty lines as verdict and reason.
// A "false" reason suppresses a "true" verdict.
func ParseTwoLine(raw string) (Result, bool) {
	lines := make([]string, 0, 2)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == 2 {
			break
		}
	}
	if len(lines) < 2 {
		return Result{}, false
	}

	verdictLine, reasonLine := lines[0], lines[1]
	return Result{
		IsSpam: lower(verdictLine) == "true" && lower(reasonLine) != "false",
		Reason: reasonLine,
	}, true
}

// ParseJSON extracts the outermost {...} span and reads is_spam and reason.
func ParseJSON(raw string) (Result, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < 0 || start >= end {
		return Result{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err != nil {
		return Result{}, false
	}

	rawSpam, hasSpam := fields["is_spam"]
	rawReason, hasReason := fields["reason"]
	if !hasSpam || !hasReason {
		return Result{}, false
	}

	isSpam, ok := coerceBool(rawSpam)
	if !ok {
		return Result{}, false
	}

	reason := coerceString(rawReason)
	if strings.TrimSpace(reason) == "" {
		reason = FallbackReason
	}

	return Result{IsSpam: isSpam, Reason: reason}, true
}

// Heuristic decides by keyword when no structure could be recovered.
// requireField additionally demands the literal "is_spam" in the text.
func Heuristic(raw string, requireField bool) Result {
	text := lower(raw)
	isSpam := strings.Contains(text, "true")
	if requireField {
		isSpam = isSpam && strings.Contains(text, "is_spam")
	}
	return Result{IsSpam: isSpam, Reason: FallbackReason}
}

// coerceBool accepts JSON booleans plus the string and number spellings
// models commonly produce ("true", "yes", 1). Anything else is rejected.
func coerceBool(raw json.RawMessage) (bool, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, false
	}

	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	case string:
		switch lower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "on":
			return true, true
		case "false", "no", "n", "0", "off":
			return false, true
		}
	}
	return false, false
}

func coerceString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// cases.Caser is stateful, so a fresh one is built per call.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}
