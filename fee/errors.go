package fee

import "fmt"

// ValidationError reports a load-boundary violation on a single record. It
// carries the record's ID so a caller rejecting a whole batch can point at
// the offending rows.
type ValidationError struct {
	RecordID string
	Field    string
	Message  string
}

func (e ValidationError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("feeledger: validation failed for %s on record %s: %s", e.Field, e.RecordID, e.Message)
	}
	return fmt.Sprintf("feeledger: validation failed for %s: %s", e.Field, e.Message)
}
