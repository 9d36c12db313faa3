package main

import "testing"

func TestVisibleSuggestions(t *testing.T) {
	wide := visibleSuggestions(120)
	if len(wide) != len(suggestedQueries) {
		t.Fatalf("wide terminal should list all %d suggestions, got %d", len(suggestedQueries), len(wide))
	}
	if wide[1] != "Compare FSRD and FTMD usage trends" {
		t.Errorf("unexpected wide label %q", wide[1])
	}

	narrow := visibleSuggestions(60)
	if len(narrow) != narrowSuggestions {
		t.Fatalf("narrow terminal should list %d suggestions, got %d", narrowSuggestions, len(narrow))
	}
	if narrow[1] != "FSRD vs FTMD trends" {
		t.Errorf("unexpected narrow label %q", narrow[1])
	}

	if got := suggestionQuery(narrow[1]); got != "Compare FSRD and FTMD usage trends" {
		t.Errorf("short label mapped to %q", got)
	}
	if got := suggestionQuery("free text"); got != "free text" {
		t.Errorf("unknown label mapped to %q", got)
	}
}
