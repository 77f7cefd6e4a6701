package domain

// MaxCollectedErrors bounds per-item error strings carried in sync and
// import results.
const MaxCollectedErrors = 10

// SyncResult reports the outcome of one export invocation. Per-item
// failures are collected here rather than failing the batch.
type SyncResult struct {
	Synced int      `json:"synced"`
	Errors []string `json:"errors"`
	// MappingFailures counts events whose provider-side create succeeded
	// but whose mapping write failed afterwards. Remote and local state
	// diverge for these; they need operator attention and are reported
	// separately from ordinary per-item errors.
	MappingFailures int `json:"mappingFailures,omitempty"`
}

// ImportResult reports the outcome of one import invocation.
type ImportResult struct {
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Scanned  int      `json:"scanned"`
	Errors   []string `json:"errors"`
}

// JobOutcome is the per-job result of a due scan.
type JobOutcome struct {
	JobID   string `json:"id"`
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ScanResult reports the outcome of one due-scan invocation.
type ScanResult struct {
	Scanned int          `json:"scanned"`
	Due     int          `json:"due"`
	Ran     int          `json:"ran"`
	Failed  int          `json:"failed"`
	Results []JobOutcome `json:"results"`
}

// AppendBoundedError appends msg to errs unless the bound has been
// reached already.
func AppendBoundedError(errs []string, msg string) []string {
	if len(errs) >= MaxCollectedErrors {
		return errs
	}
	return append(errs, msg)
}
