package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleExam = `
title: Arithmetic
description: Warm-up
duration_minutes: 30
negative_marking: true
questions:
  - text: "2 + 2"
    options: ["3", "4", "5"]
    correct: 2
  - text: "3 * 3"
    options: ["6", "9"]
    correct: 2
    score: 2.5
`

func TestParseExamFile(t *testing.T) {
	f, err := parseExamFile(strings.NewReader(sampleExam))
	require.NoError(t, err)

	e := f.exam()
	assert.Equal(t, "Arithmetic", e.Title)
	require.NotNil(t, e.DurationMinutes)
	assert.Equal(t, 30, *e.DurationMinutes)
	require.NotNil(t, e.Description)
	assert.True(t, e.NegativeMarking)

	qs := f.questions()
	require.Len(t, qs, 2)
	assert.Equal(t, 1, qs[0].OrderIndex)
	assert.Equal(t, 2, qs[1].OrderIndex)
	assert.Equal(t, "4", qs[0].Options[1].Text)
	assert.Equal(t, 1.0, qs[0].Score)
	assert.Equal(t, 2.5, qs[1].Score)
}

func TestParseExamFileUnlimited(t *testing.T) {
	f, err := parseExamFile(strings.NewReader(`
title: Open book
questions:
  - text: q
    options: [a, b]
    correct: 1
`))
	require.NoError(t, err)
	assert.Nil(t, f.exam().DurationMinutes)
	assert.Nil(t, f.exam().Description)
}

func TestParseExamFileRejectsInvalid(t *testing.T) {
	_, err := parseExamFile(strings.NewReader(`
duration_minutes: -1
questions:
  - text: ""
    options: [only]
    correct: 3
`))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "title is required")
	assert.Contains(t, msg, "duration_minutes must not be negative")
	assert.Contains(t, msg, "question 1: text is required")
	assert.Contains(t, msg, "question 1: at least two options are required")
	assert.Contains(t, msg, "question 1: correct must be between 1 and 1")
}

func TestParseExamFileRejectsUnknownFields(t *testing.T) {
	_, err := parseExamFile(strings.NewReader("title: x\nbogus: 1\n"))
	assert.Error(t, err)
}
