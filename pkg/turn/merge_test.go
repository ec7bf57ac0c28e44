package turn_test

import (
	"testing"
	"time"

	"github.com/guffawlabs/go-tutor/pkg/turn"
)

func mkTurn(id string, src turn.Source, text string, at time.Time) turn.Turn {
	return turn.Turn{
		ID:        id,
		Source:    src,
		Text:      text,
		CreatedAt: at,
		OwnerID:   "owner-1",
	}
}

func TestCombine(t *testing.T) {
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("empty inputs return empty", func(t *testing.T) {
		if got := turn.Combine(nil, nil); len(got) != 0 {
			t.Errorf("expected empty result, got %d turns", len(got))
		}
	})

	t.Run("one-sided merge preserves order", func(t *testing.T) {
		users := []turn.Turn{
			mkTurn("a", turn.SourceUser, "first", base),
			mkTurn("b", turn.SourceUser, "second", base.Add(time.Minute)),
		}
		got := turn.Combine(users, nil)
		if len(got) != 2 {
			t.Fatalf("expected 2 turns, got %d", len(got))
		}
		if got[0].ID != "a" || got[1].ID != "b" {
			t.Errorf("order changed: %s, %s", got[0].ID, got[1].ID)
		}
	})

	t.Run("interleaves by timestamp", func(t *testing.T) {
		users := []turn.Turn{
			mkTurn("a", turn.SourceUser, "hello", base),
			mkTurn("b", turn.SourceUser, "how are you", base.Add(2*time.Minute)),
		}
		agents := []turn.Turn{
			mkTurn("a", turn.SourceAgent, "hi there", base.Add(time.Minute)),
			mkTurn("b", turn.SourceAgent, "doing well", base.Add(3*time.Minute)),
		}
		got := turn.Combine(users, agents)
		want := []string{"hello", "hi there", "how are you", "doing well"}
		if len(got) != len(want) {
			t.Fatalf("expected %d turns, got %d", len(want), len(got))
		}
		for i, text := range want {
			if got[i].Text != text {
				t.Errorf("position %d: expected %q, got %q", i, text, got[i].Text)
			}
		}
	})

	t.Run("user precedes agent on equal timestamps", func(t *testing.T) {
		users := []turn.Turn{mkTurn("a", turn.SourceUser, "question", base)}
		agents := []turn.Turn{mkTurn("a", turn.SourceAgent, "answer", base)}

		got := turn.Combine(users, agents)
		if len(got) != 2 {
			t.Fatalf("expected 2 turns, got %d", len(got))
		}
		if got[0].Source != turn.SourceUser {
			t.Errorf("expected user first, got %s", got[0].Source)
		}
		if got[1].Source != turn.SourceAgent {
			t.Errorf("expected agent second, got %s", got[1].Source)
		}
	})

	t.Run("does not modify inputs", func(t *testing.T) {
		users := []turn.Turn{
			mkTurn("b", turn.SourceUser, "later", base.Add(time.Hour)),
		}
		agents := []turn.Turn{
			mkTurn("a", turn.SourceAgent, "earlier", base),
		}
		_ = turn.Combine(users, agents)
		if users[0].Text != "later" || agents[0].Text != "earlier" {
			t.Error("inputs were modified")
		}
	})
}

func TestFilter(t *testing.T) {
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	merged := turn.Combine(
		[]turn.Turn{
			mkTurn("a", turn.SourceUser, "Where is the library?", base),
			mkTurn("b", turn.SourceUser, "Thank you!", base.Add(time.Minute)),
		},
		[]turn.Turn{
			mkTurn("a", turn.SourceAgent, "The library is on Main Street.", base),
			mkTurn("b", turn.SourceAgent, "You are welcome.", base.Add(time.Minute)),
		},
	)

	t.Run("case-insensitive substring match", func(t *testing.T) {
		got := turn.Filter(merged, "LIBRARY")
		if len(got) != 2 {
			t.Fatalf("expected 2 matches, got %d", len(got))
		}
		for _, m := range got {
			if m.ID != "a" {
				t.Errorf("unexpected match %q", m.Text)
			}
		}
	})

	t.Run("empty query matches everything", func(t *testing.T) {
		if got := turn.Filter(merged, ""); len(got) != len(merged) {
			t.Errorf("expected %d turns, got %d", len(merged), len(got))
		}
	})

	t.Run("no matches returns empty", func(t *testing.T) {
		if got := turn.Filter(merged, "weather"); len(got) != 0 {
			t.Errorf("expected no matches, got %d", len(got))
		}
	})
}

func TestFilterPaired(t *testing.T) {
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	merged := turn.Combine(
		[]turn.Turn{
			mkTurn("a", turn.SourceUser, "Where is the library?", base),
			mkTurn("b", turn.SourceUser, "Thank you!", base.Add(time.Minute)),
		},
		[]turn.Turn{
			mkTurn("a", turn.SourceAgent, "On Main Street.", base),
			mkTurn("b", turn.SourceAgent, "You are welcome.", base.Add(time.Minute)),
		},
	)

	t.Run("match on one side surfaces the whole pair", func(t *testing.T) {
		got := turn.FilterPaired(merged, "library")
		if len(got) != 2 {
			t.Fatalf("expected the full pair, got %d turns", len(got))
		}
		if got[0].Source != turn.SourceUser || got[1].Source != turn.SourceAgent {
			t.Error("pair order not preserved")
		}
		if got[0].ID != "a" || got[1].ID != "a" {
			t.Error("expected both turns of pair a")
		}
	})

	t.Run("no matches returns empty", func(t *testing.T) {
		if got := turn.FilterPaired(merged, "weather"); len(got) != 0 {
			t.Errorf("expected no matches, got %d", len(got))
		}
	})
}

func TestNewPair(t *testing.T) {
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	user, agent := turn.NewPair("owner-1", "hello", "/tmp/u.m4a", "hi there", "/tmp/a.mp3", at)

	if user.ID == "" {
		t.Fatal("expected non-empty pairing ID")
	}
	if user.ID != agent.ID {
		t.Errorf("pair IDs differ: %s vs %s", user.ID, agent.ID)
	}
	if !user.CreatedAt.Equal(agent.CreatedAt) {
		t.Error("pair timestamps differ")
	}
	if user.Source != turn.SourceUser || agent.Source != turn.SourceAgent {
		t.Error("pair sources wrong")
	}

	u2, _ := turn.NewPair("owner-1", "x", "", "y", "", at)
	if u2.ID == user.ID {
		t.Error("expected distinct pairing IDs across exchanges")
	}
}
