package textutil

import (
	"strings"
	"testing"
)

func TestChunk_ShortTextIsOneChunk(t *testing.T) {
	got := Chunk("  hello  ", 100)
	if len(got) != 1 || got[0] != "hello" {
		t.Errorf("Expected [hello], got %q", got)
	}
}

func TestChunk_Empty(t *testing.T) {
	if got := Chunk("   ", 10); got != nil {
		t.Errorf("Expected nil for blank text, got %q", got)
	}
}

func TestChunk_PrefersSentenceBoundary(t *testing.T) {
	got := Chunk("One two. Three four five.", 12)
	want := []string{"One two.", "Three four", "five."}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestChunk_RespectsLimit(t *testing.T) {
	text := strings.Repeat("word ", 500)
	for _, c := range Chunk(text, 64) {
		if len(c) > 64 {
			t.Errorf("chunk exceeds limit: %d bytes", len(c))
		}
	}
}

func TestChunk_LongWordIsCut(t *testing.T) {
	got := Chunk("abcdefghij", 4)
	want := []string{"abcd", "efgh", "ij"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestChunk_DoesNotSplitRunes(t *testing.T) {
	got := Chunk("ééééé", 3)
	for _, c := range got {
		if !strings.HasPrefix("ééééé", c) && c != "é" {
			t.Errorf("unexpected chunk %q", c)
		}
	}
	if strings.Join(got, "") != "ééééé" {
		t.Errorf("chunks lost content: %q", got)
	}
}

func TestStripMarkdown(t *testing.T) {
	src := "# Title\n\nSome *emphasis* and `code`.\n\n```go\nfmt.Println()\n```\n\n- one\n- two\n\n[link](http://example.com)\n"
	got := StripMarkdown([]byte(src))
	want := "Title. Some emphasis and code. one. two. link."
	if got != want {
		t.Errorf("StripMarkdown()\n got: %q\nwant: %q", got, want)
	}
}

func TestIsMarkdown(t *testing.T) {
	for name, want := range map[string]bool{
		"README.md":      true,
		"notes.MARKDOWN": true,
		"plain.txt":      false,
		"noext":          false,
	} {
		if got := IsMarkdown(name); got != want {
			t.Errorf("IsMarkdown(%q) = %v, want %v", name, got, want)
		}
	}
}
