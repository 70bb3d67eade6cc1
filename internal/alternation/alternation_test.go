package alternation

import (
	"testing"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/dukerupert/choresync/internal/model"
)

func member(name string) model.Member {
	return model.Member{ID: uuid.New(), DisplayName: name}
}

func completedBy(m model.Member) model.CompletionEvent {
	return model.CompletionEvent{ID: uuid.New(), MemberID: m.ID}
}

func TestNoMembers(t *testing.T) {
	var e Engine
	if got := e.NextAssignee(nil, nil, nil); got != nil {
		t.Errorf("NextAssignee(nil) = %+v, want nil", got)
	}
}

func TestFirstOccurrenceLowestLoad(t *testing.T) {
	a, b := member("Alex"), member("Blake")
	load := map[uuid.UUID]int{a.ID: 3, b.ID: 1}

	var e Engine
	got := e.NextAssignee([]model.Member{a, b}, nil, load)
	if got == nil || got.ID != b.ID {
		t.Errorf("NextAssignee = %v, want Blake", got)
	}
}

func TestTieBreakByName(t *testing.T) {
	tests := []struct {
		name    string
		members []string
		want    string
	}{
		{"alphabetical", []string{"Blake", "alex"}, "alex"},
		{"case insensitive", []string{"bob", "Alice"}, "Alice"},
		{"equal names keep order", []string{"Sam", "sam"}, "Sam"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var members []model.Member
			for _, n := range tt.members {
				members = append(members, member(n))
			}
			e := Engine{Locale: language.English}
			got := e.NextAssignee(members, nil, map[uuid.UUID]int{})
			if got == nil || got.DisplayName != tt.want {
				t.Errorf("NextAssignee = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestExcludesLastCompleter(t *testing.T) {
	a, b, c := member("Alex"), member("Blake"), member("Casey")
	history := []model.CompletionEvent{completedBy(a), completedBy(b)}

	var e Engine
	got := e.NextAssignee([]model.Member{a, b, c}, history, map[uuid.UUID]int{})
	if got == nil || got.ID != b.ID {
		t.Errorf("NextAssignee = %v, want Blake", got)
	}
}

func TestSingleMemberFallback(t *testing.T) {
	a := member("Alex")
	history := []model.CompletionEvent{completedBy(a)}

	var e Engine
	got := e.NextAssignee([]model.Member{a}, history, nil)
	if got == nil || got.ID != a.ID {
		t.Errorf("NextAssignee = %v, want Alex", got)
	}
}

func TestReturnsPointerIntoMembers(t *testing.T) {
	members := []model.Member{member("Alex"), member("Blake")}

	var e Engine
	got := e.NextAssignee(members, nil, nil)
	if got != &members[0] {
		t.Error("NextAssignee should point into the members slice")
	}
}

func TestFairRotation(t *testing.T) {
	a, b := member("Alex"), member("Blake")
	members := []model.Member{a, b}
	load := map[uuid.UUID]int{}
	var history []model.CompletionEvent

	var e Engine
	var prev uuid.UUID
	for i := 0; i < 10; i++ {
		got := e.NextAssignee(members, history, load)
		if got == nil {
			t.Fatalf("round %d: no assignee", i)
		}
		if i > 0 && got.ID == prev {
			t.Fatalf("round %d: %s assigned twice in a row", i, got.DisplayName)
		}
		prev = got.ID
		history = append([]model.CompletionEvent{completedBy(*got)}, history...)
	}
}

func TestOrder(t *testing.T) {
	members := []model.Member{member("casey"), member("Alex"), member("blake")}

	var e Engine
	got := e.Order(members)
	want := []string{"Alex", "blake", "casey"}
	for i, m := range got {
		if m.DisplayName != want[i] {
			t.Errorf("Order()[%d] = %s, want %s", i, m.DisplayName, want[i])
		}
	}
	if members[0].DisplayName != "casey" {
		t.Error("Order modified its input")
	}
}
