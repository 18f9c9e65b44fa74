package main

import (
	"errors"
	"testing"
)

func TestMemoryFlagsInput(t *testing.T) {
	f := memoryFlags{title: "Anna & Ben", eventDate: "2026-06-20", cover: "cover.jpg"}
	in, err := f.input()
	if err != nil {
		t.Fatalf("input: %v", err)
	}
	if in.Title != "Anna & Ben" || in.CoverPath != "cover.jpg" || in.EventDate.Year() != 2026 || in.EventDate.Day() != 20 {
		t.Fatalf("unexpected input %+v", in)
	}

	f.eventDate = "20/06/2026"
	if _, err := f.input(); err == nil {
		t.Fatalf("expected a date parse error")
	}
}

func TestCountErrors(t *testing.T) {
	joined := errors.Join(errors.New("a"), errors.New("b"))
	if n := countErrors(joined); n != 2 {
		t.Fatalf("countErrors(joined) = %d", n)
	}
	if n := countErrors(errors.New("single")); n != 1 {
		t.Fatalf("countErrors(single) = %d", n)
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand(&app{})
	for _, path := range [][]string{
		{"login"}, {"whoami"}, {"watch"}, {"upload"},
		{"memories", "list"}, {"memories", "download"}, {"media", "delete"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd == root {
			t.Fatalf("command %v not registered: %v", path, err)
		}
	}
}
