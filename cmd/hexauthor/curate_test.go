package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/hexauthor/internal/models"
	"github.com/xhad/hexauthor/pkg/selection"
	"github.com/xhad/hexauthor/pkg/store"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		line    string
		want    action
		wantErr bool
	}{
		{line: "select quick brown", want: action{name: "select", arg: "quick brown"}},
		{line: "select the #2", want: action{name: "select", arg: "the", occurrence: 1}},
		{line: "SELECT issue #12 fixed", want: action{name: "select", arg: "issue #12 fixed"}},
		{line: "select the #0", wantErr: true},
		{line: "select", wantErr: true},
		{line: "tag  cloud migration ", want: action{name: "tag", arg: "cloud migration"}},
		{line: "tag", wantErr: true},
		{line: "rm 2", want: action{name: "rm", arg: "2", occurrence: 2}},
		{line: "rm x", wantErr: true},
		{line: "para 2", want: action{name: "para", arg: "2", occurrence: 2}},
		{line: "para", wantErr: true},
		{line: "tags", want: action{name: "tags"}},
		{line: "save ws-1 deck.pdf", want: action{name: "save", arg: "ws-1 deck.pdf"}},
		{line: "   ", wantErr: true},
		{line: "dance", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseAction(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderRuns(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	runs := selection.Render("The quick brown fox", []models.Chunk{{ID: "a", Tag: "speed", StartIndex: 4, EndIndex: 9}})
	assert.Equal(t, "The quick[speed] brown fox", renderRuns(runs))
}

func TestCurateLoop(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	session := selection.New("the cat sat on the mat by the door")
	mem := store.NewMemory()

	script := strings.Join([]string{
		"save ws-1",
		"select the #2",
		"tag article",
		"select cat",
		"select at on",
		"tag feline",
		"ls",
		"rm 1",
		"tag orphan",
		"select he",
		"select door #2",
		"para 3",
		"para 1",
		"select door",
		"tag place",
		"tags a",
		"save ws-1 notes.txt",
		"bogus",
		"exit",
	}, "\n")

	var out bytes.Buffer
	err := curate(context.Background(), session, mem, "inline", strings.NewReader(script), &out)
	require.NoError(t, err)

	chunks := selection.SortByPosition(session.Chunks())
	require.Len(t, chunks, 2)
	assert.Equal(t, "at on", chunks[0].Text)
	assert.Equal(t, "door", chunks[1].Text)

	saved, err := mem.ListSections(context.Background(), "ws-1")
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "notes.txt #1", saved[0].Name)
	assert.Equal(t, []string{"feline"}, saved[0].Tags)
	assert.Equal(t, "notes.txt #2", saved[1].Name)
	assert.Equal(t, []string{"place"}, saved[1].Tags)

	text := out.String()
	assert.Contains(t, text, "no chunks to save")
	assert.Contains(t, text, `1. [article] "the" (15-18)`)
	assert.Contains(t, text, "nothing to tag")
	assert.Contains(t, text, "selection ignored")
	assert.Contains(t, text, "using match 2 of 3")
	assert.Contains(t, text, `"door" occurs 1 times`)
	assert.Contains(t, text, "no paragraph 3")
	assert.Contains(t, text, "article, place")
	assert.Contains(t, text, "unknown command")
}
