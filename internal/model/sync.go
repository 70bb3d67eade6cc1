package model

import "encoding/json"

// PullResponse is the payload of both GET and POST /sync.
type PullResponse struct {
	Revision    int64             `json:"revision"`
	Members     []Member          `json:"members"`
	Templates   []TaskTemplate    `json:"templates"`
	Occurrences []TaskOccurrence  `json:"occurrences"`
	Completions []CompletionEvent `json:"completions"`
}

// IsEmpty reports whether the response carries no records of any kind.
func (r PullResponse) IsEmpty() bool {
	return len(r.Members) == 0 && len(r.Templates) == 0 &&
		len(r.Occurrences) == 0 && len(r.Completions) == 0
}

// MaxRevision returns the highest SyncRevision among the carried records.
func (r PullResponse) MaxRevision() int64 {
	var rev int64
	for _, m := range r.Members {
		rev = max(rev, m.SyncRevision)
	}
	for _, t := range r.Templates {
		rev = max(rev, t.SyncRevision)
	}
	for _, o := range r.Occurrences {
		rev = max(rev, o.SyncRevision)
	}
	for _, c := range r.Completions {
		rev = max(rev, c.SyncRevision)
	}
	return rev
}

func (r PullResponse) MarshalJSON() ([]byte, error) {
	type alias PullResponse
	a := alias(r)
	a.Members = nonNil(a.Members)
	a.Templates = nonNil(a.Templates)
	a.Occurrences = nonNil(a.Occurrences)
	a.Completions = nonNil(a.Completions)
	return json.Marshal(a)
}

// PushRequest carries a device's full local snapshot.
type PushRequest struct {
	BaseRevision int64             `json:"baseRevision"`
	Members      []Member          `json:"members"`
	Templates    []TaskTemplate    `json:"templates"`
	Occurrences  []TaskOccurrence  `json:"occurrences"`
	Completions  []CompletionEvent `json:"completions"`
}

// HasLocalChanges reports whether any record in the request is dirty.
func (r PushRequest) HasLocalChanges() bool {
	for _, m := range r.Members {
		if m.SyncRevision == 0 {
			return true
		}
	}
	for _, t := range r.Templates {
		if t.SyncRevision == 0 {
			return true
		}
	}
	for _, o := range r.Occurrences {
		if o.SyncRevision == 0 {
			return true
		}
	}
	for _, c := range r.Completions {
		if c.SyncRevision == 0 {
			return true
		}
	}
	return false
}

func (r PushRequest) MarshalJSON() ([]byte, error) {
	type alias PushRequest
	a := alias(r)
	a.Members = nonNil(a.Members)
	a.Templates = nonNil(a.Templates)
	a.Occurrences = nonNil(a.Occurrences)
	a.Completions = nonNil(a.Completions)
	return json.Marshal(a)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
