package domain

// FetchStatus tags how a fetch session terminated.
type FetchStatus string

const (
	// FetchStatusCompleted means the source ran out of results (empty page or no next cursor).
	FetchStatusCompleted FetchStatus = "completed"
	// FetchStatusCapReached means the record cap was hit.
	FetchStatusCapReached FetchStatus = "cap_reached"
	// FetchStatusMaxPages means the page strategy hit its page bound.
	FetchStatusMaxPages FetchStatus = "max_pages"
	// FetchStatusFailed means a request failed and the loop was aborted.
	FetchStatusFailed FetchStatus = "failed"
	// FetchStatusCanceled means the context was canceled between pages.
	FetchStatusCanceled FetchStatus = "canceled"
)

// IsSuccess reports whether the session ended without a failed request or cancellation.
func (s FetchStatus) IsSuccess() bool {
	switch s {
	case FetchStatusCompleted, FetchStatusCapReached, FetchStatusMaxPages:
		return true
	default:
		return false
	}
}

// FetchOutcome describes the end of a fetch session. It separates
// "no matching records" (Status completed, zero records) from
// "fetch failed before anything arrived" (Status failed).
type FetchOutcome struct {
	Status         FetchStatus        `json:"status"`
	Strategy       PaginationStrategy `json:"strategy"`
	PagesAttempted int                `json:"pages_attempted"`
	PagesSucceeded int                `json:"pages_succeeded"`

	// FailedAt names the page number or cursor whose request failed.
	FailedAt string `json:"failed_at,omitempty"`

	// Failure is the error message of the failed request.
	Failure string `json:"failure,omitempty"`

	// Err is the error that aborted the session, if any.
	Err error `json:"-"`
}

// Failed reports whether a request failure aborted the session.
func (o FetchOutcome) Failed() bool {
	return o.Status == FetchStatusFailed
}
