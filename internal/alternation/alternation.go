// Package alternation picks who does the next occurrence of a chore.
package alternation

import (
	"slices"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/dukerupert/choresync/internal/model"
)

// Engine rotates assignments across members. The zero value orders names
// with the root collation.
type Engine struct {
	Locale language.Tag
}

// NextAssignee returns the member who should take the next occurrence, or nil
// when there are no members.
//
// history is ordered most recent first. The member behind the latest
// completion sits out unless nobody else is left. Among the candidates the
// one with the fewest pending assignments in load wins; ties go to the name
// that sorts first, case-insensitively, and then to member order.
func (e Engine) NextAssignee(members []model.Member, history []model.CompletionEvent, load map[uuid.UUID]int) *model.Member {
	if len(members) == 0 {
		return nil
	}

	candidates := members
	if len(history) > 0 {
		last := history[0].MemberID
		rest := make([]model.Member, 0, len(members))
		for _, m := range members {
			if m.ID != last {
				rest = append(rest, m)
			}
		}
		if len(rest) > 0 {
			candidates = rest
		}
	}

	col := collate.New(e.Locale, collate.IgnoreCase)
	best := candidates[0]
	for _, m := range candidates[1:] {
		lm, lb := load[m.ID], load[best.ID]
		if lm < lb || (lm == lb && col.CompareString(m.DisplayName, best.DisplayName) < 0) {
			best = m
		}
	}

	for i := range members {
		if members[i].ID == best.ID {
			return &members[i]
		}
	}
	return nil
}

// Order returns the members sorted the way ties are broken.
func (e Engine) Order(members []model.Member) []model.Member {
	col := collate.New(e.Locale, collate.IgnoreCase)
	sorted := slices.Clone(members)
	slices.SortStableFunc(sorted, func(a, b model.Member) int {
		return col.CompareString(a.DisplayName, b.DisplayName)
	})
	return sorted
}
