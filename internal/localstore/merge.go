package localstore

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/model"
)

func decode(data []byte) (document, error) {
	doc := document{Version: formatVersion}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, err
	}
	return doc, nil
}

// merge folds another process's saved document (theirs) into this handle's
// in-memory document (ours). base is the file as this handle last read or
// wrote it, so a record that only one side changed takes that side's value.
func merge(base, ours, theirs document) document {
	out := document{Version: formatVersion}

	switch {
	case ours.LastAppliedRevision == base.LastAppliedRevision:
		out.LastAppliedRevision = theirs.LastAppliedRevision
	case theirs.LastAppliedRevision == base.LastAppliedRevision:
		out.LastAppliedRevision = ours.LastAppliedRevision
	default:
		out.LastAppliedRevision = max(ours.LastAppliedRevision, theirs.LastAppliedRevision)
	}

	out.RegisteredDeviceToken = ours.RegisteredDeviceToken
	if ours.RegisteredDeviceToken == base.RegisteredDeviceToken {
		out.RegisteredDeviceToken = theirs.RegisteredDeviceToken
	}

	out.Members = mergeRecords(base.Members, ours.Members, theirs.Members, memberID,
		func(m model.Member) int64 { return m.SyncRevision })
	out.Templates = mergeRecords(base.Templates, ours.Templates, theirs.Templates, templateID,
		func(t model.TaskTemplate) int64 { return t.SyncRevision })
	out.Occurrences = mergeRecords(base.Occurrences, ours.Occurrences, theirs.Occurrences, occurrenceID,
		func(o model.TaskOccurrence) int64 { return o.SyncRevision })
	out.Completions = mergeRecords(base.Completions, ours.Completions, theirs.Completions, completionID,
		func(c model.CompletionEvent) int64 { return c.SyncRevision })
	return out
}

func mergeRecords[T any](base, ours, theirs []T, key func(T) uuid.UUID, rev func(T) int64) []T {
	baseByID := index(base, key)
	oursByID := index(ours, key)
	theirsByID := index(theirs, key)

	out := make([]T, 0, max(len(ours), len(theirs)))
	for _, o := range ours {
		id := key(o)
		b, inBase := baseByID[id]
		t, inTheirs := theirsByID[id]
		switch {
		case inBase && sameRecord(o, b):
			// Untouched here; a missing theirs means the other side deleted it.
			if inTheirs {
				out = append(out, t)
			}
		case !inTheirs:
			out = append(out, o)
		case inBase && sameRecord(t, b):
			out = append(out, o)
		default:
			out = append(out, newer(o, t, rev))
		}
	}
	for _, t := range theirs {
		id := key(t)
		if _, ok := oursByID[id]; ok {
			continue
		}
		if b, inBase := baseByID[id]; inBase && sameRecord(t, b) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// newer resolves a record both sides changed. An unsynced edit wins over a
// server copy; between two server copies the higher revision wins.
func newer[T any](ours, theirs T, rev func(T) int64) T {
	switch {
	case rev(ours) == 0:
		return ours
	case rev(theirs) == 0:
		return theirs
	case rev(theirs) > rev(ours):
		return theirs
	default:
		return ours
	}
}

func index[T any](items []T, key func(T) uuid.UUID) map[uuid.UUID]T {
	m := make(map[uuid.UUID]T, len(items))
	for _, item := range items {
		m[key(item)] = item
	}
	return m
}

func sameRecord[T any](a, b T) bool {
	x, err := json.Marshal(a)
	if err != nil {
		return false
	}
	y, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(x, y)
}
