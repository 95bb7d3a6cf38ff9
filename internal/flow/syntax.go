package flow

import (
	"github.com/viant/sqlparser"

	"github.com/kestrelhq/nlsql/pkg/mlog"
)

// ValidateSyntax parses sqlText with a ClickHouse-dialect-aware parser
// before execution (spec §4.6.3). A parse failure is only logged — the
// warehouse remains the source of truth for acceptability, so callers
// should ignore the returned error for control flow and use the logger
// side effect instead; it is returned only so tests can assert on it.
func ValidateSyntax(sqlText string) (bool, error) {
	if sqlText == "" {
		return true, nil
	}

	if _, err := sqlparser.ParseQuery(sqlText); err != nil {
		return false, err
	}

	return true, nil
}

// LogSyntaxWarning parses sqlText and logs a warning on failure, per spec
// §4.6.3's "logged as a warning but does not stop execution".
func LogSyntaxWarning(logger mlog.Logger, sqlText string) {
	if ok, err := ValidateSyntax(sqlText); !ok {
		logger.Warnf("sql syntax validation failed (non-fatal): %v", err)
	}
}
