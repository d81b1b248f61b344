package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjio/sanjio/internal/countdown"
	"github.com/sanjio/sanjio/internal/model"
	"github.com/sanjio/sanjio/internal/session"
)

func TestDecode(t *testing.T) {
	got := Decode([]byte("3fn\x1b[Cp\x1b[Dmsq\r\x7fy\x03"))
	want := []Event{
		{Kind: KeyDigit, Digit: 3},
		{Kind: KeyFlag},
		{Kind: KeyNext},
		{Kind: KeyNext},
		{Kind: KeyPrev},
		{Kind: KeyPrev},
		{Kind: KeyMap},
		{Kind: KeySubmit},
		{Kind: KeyQuit},
		{Kind: KeyEnter},
		{Kind: KeyBackspace},
		{Kind: KeyYes},
		{Kind: KeyQuit},
	}
	assert.Equal(t, want, got)
}

func TestDecode_LoneEscape(t *testing.T) {
	assert.Equal(t, []Event{{Kind: KeyNo}}, Decode([]byte{0x1b}))
}

func sampleState() session.State {
	return session.State{
		ExamID: "E1",
		Questions: []model.CandidateQuestion{
			{ID: "q1", Text: "Capital of France?", Options: []model.Option{{Text: "Paris"}, {Text: "Rome"}}},
			{ID: "q2", Text: "2 + 2", Options: []model.Option{{Text: "4"}, {Text: "5"}}},
		},
		Answers: map[string]int{"q1": 1},
		Flagged: []string{"q2"},
	}
}

func TestRender_Question(t *testing.T) {
	var b strings.Builder
	err := Render(&b, Screen{
		Title:     "Geography",
		State:     sampleState(),
		Remaining: countdown.Remaining{Hours: 0, Minutes: 4, Seconds: 9},
		LowTime:   true,
	})
	require.NoError(t, err)

	out := b.String()
	assert.Contains(t, out, "Geography")
	assert.Contains(t, out, "!! 00:04:09 !!")
	assert.Contains(t, out, "1/2 answered, 1 flagged")
	assert.Contains(t, out, "Question 1 of 2")
	assert.Contains(t, out, "● 1) Paris")
	assert.Contains(t, out, "○ 2) Rome")
	assert.Contains(t, out, "s submit")
}

func TestRender_MapAndConfirm(t *testing.T) {
	st := sampleState()
	st.SidebarOpen = true
	st.CurrentIndex = 1

	var b strings.Builder
	require.NoError(t, Render(&b, Screen{State: st, Unlimited: true, Mode: ModeConfirmSubmit}))

	out := b.String()
	assert.Contains(t, out, "no time limit")
	assert.Contains(t, out, "[flagged]")
	assert.Contains(t, out, "  1* [ 2?]")
	assert.Contains(t, out, "1 of 2 answered")
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "["+strings.Repeat(".", barWidth)+"]", progressBar(0))
	assert.Equal(t, "["+strings.Repeat("#", barWidth)+"]", progressBar(1))
}
