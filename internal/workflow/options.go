package workflow

import "time"

// Options carries the per-run knobs taken from the submit request.
type Options struct {
	// IDs is the list of club identifiers to process, in request order.
	IDs []string

	// SeasonFilter narrows roster fetches to one season when set.
	SeasonFilter string

	// Fields selects the workbook columns. Empty means the default set.
	Fields []string

	// Force refetches rosters and re-enriches rows that already carry
	// profile data.
	Force bool

	// Parallel enables concurrent profile enrichment with up to
	// MaxParallel in-flight requests.
	Parallel    bool
	MaxParallel int

	// RateLimit inserts Delay between consecutive source API calls.
	// Delay also seeds the retry backoff.
	RateLimit bool
	Delay     time.Duration

	// Retries is the total number of attempts per request, including
	// the first. Values below one are treated as one.
	Retries int
}

// Recorder receives the human-readable progress lines of a run.
// *models.Job satisfies it.
type Recorder interface {
	Log(message string)
	Logf(format string, args ...interface{})
}
