package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FormatForCLI formats an error for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	var ee *EngineError
	if !stderrors.As(err, &ee) {
		ee = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ee.Message)

	if len(ee.Details) > 0 {
		keys := make([]string, 0, len(ee.Details))
		for k := range ee.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, ee.Details[k])
		}
	}

	if ee.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", ee.Suggestion)
	}

	fmt.Fprintf(&sb, "  Code: %s\n", ee.Code)
	return sb.String()
}

// LogAttrs returns slog attributes describing err.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	var ee *EngineError
	if !stderrors.As(err, &ee) {
		return []any{slog.String("error", err.Error())}
	}

	attrs := []any{
		slog.String("error_code", ee.Code),
		slog.String("error", ee.Message),
		slog.String("category", string(ee.Category)),
		slog.String("severity", string(ee.Severity)),
	}
	if ee.Cause != nil {
		attrs = append(attrs, slog.String("cause", ee.Cause.Error()))
	}
	for k, v := range ee.Details {
		attrs = append(attrs, slog.String("detail_"+k, v))
	}
	return attrs
}
