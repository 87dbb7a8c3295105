package tools

import (
	"strings"
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func TestFormatNotes(t *testing.T) {
	events := []*nostr.Event{
		{
			PubKey:    "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d",
			CreatedAt: nostr.Timestamp(1700000000),
			Content:   "hello nostr",
		},
	}

	got := formatNotes(events)
	if !strings.Contains(got, "(by 3bf0c63fcb93...)") {
		t.Errorf("output = %q, want truncated pubkey", got)
	}
	if !strings.Contains(got, "hello nostr") {
		t.Errorf("output = %q, want content", got)
	}
	if !strings.HasPrefix(got, "[1] ") {
		t.Errorf("output = %q, want numbered entries", got)
	}
}

func TestFormatNotesShortPubKey(t *testing.T) {
	events := []*nostr.Event{
		{PubKey: "abc", CreatedAt: nostr.Timestamp(1700000000), Content: "note"},
		{PubKey: "", CreatedAt: nostr.Timestamp(1700000001), Content: "anon"},
	}

	got := formatNotes(events)
	if !strings.Contains(got, "(by abc...)") {
		t.Errorf("output = %q, want short pubkey kept whole", got)
	}
	if !strings.Contains(got, "anon") {
		t.Errorf("output = %q, want second note", got)
	}
}

func TestFormatNotesTruncatesContent(t *testing.T) {
	long := strings.Repeat("x", 300)
	events := []*nostr.Event{
		{PubKey: strings.Repeat("a", 64), Content: long},
	}

	got := formatNotes(events)
	if strings.Contains(got, long) {
		t.Error("content not truncated")
	}
	if !strings.Contains(got, strings.Repeat("x", 200)+"...") {
		t.Errorf("output = %q, want 200-char cut with ellipsis", got)
	}
}

func TestFormatNotesEmpty(t *testing.T) {
	if got := formatNotes(nil); got != "No events found." {
		t.Errorf("formatNotes(nil) = %q", got)
	}
}
