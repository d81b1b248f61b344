package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/sanjio/sanjio/internal/countdown"
	"github.com/sanjio/sanjio/internal/session"
)

const (
	clearScreen = "\x1b[H\x1b[2J"
	barWidth    = 30
	mapColumns  = 10
)

// Mode is what the footer is asking the candidate for.
type Mode int

const (
	ModeAnswering Mode = iota
	ModeJump
	ModeConfirmSubmit
	ModeSubmitting
)

// Screen is everything one frame shows.
type Screen struct {
	Title     string
	State     session.State
	Remaining countdown.Remaining
	Unlimited bool
	LowTime   bool
	Mode      Mode
	JumpInput string
	Message   string
}

// Render draws a full frame. Lines end in \r\n for raw-mode terminals.
func Render(w io.Writer, s Screen) error {
	var b strings.Builder
	b.WriteString(clearScreen)

	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\r\n")
	}

	st := s.State
	total := len(st.Questions)

	line("%s", header(s))
	line("%s  %d/%d answered, %d flagged", progressBar(st.Progress()), st.AnsweredCount(), total, st.FlaggedCount())
	line("%s", strings.Repeat("─", 60))

	if q, ok := st.Current(); ok {
		marker := ""
		if st.IsFlagged(q.ID) {
			marker = "  [flagged]"
		}
		line("Question %d of %d%s", st.CurrentIndex+1, total, marker)
		line("")
		for _, l := range strings.Split(q.Text, "\n") {
			line("  %s", l)
		}
		line("")
		chosen, _ := st.AnswerFor(q.ID)
		for i, opt := range q.Options {
			bullet := "○"
			if chosen == i+1 {
				bullet = "●"
			}
			line("  %s %d) %s", bullet, i+1, opt.Text)
		}
	} else {
		line("No question loaded.")
	}

	if st.SidebarOpen {
		line("")
		for _, row := range questionMap(st) {
			line("  %s", row)
		}
		line("  * answered  ? flagged  [n] current")
	}

	line("")
	if s.Message != "" {
		line("%s", s.Message)
	}
	line("%s", footer(s))

	_, err := io.WriteString(w, b.String())
	return err
}

func header(s Screen) string {
	timer := "no time limit"
	if !s.Unlimited {
		timer = s.Remaining.String()
		if s.LowTime {
			timer = "!! " + timer + " !!"
		}
	}
	title := s.Title
	if title == "" {
		title = "Exam"
	}
	return fmt.Sprintf("%s    ⏱ %s", title, timer)
}

func progressBar(p float64) string {
	filled := int(p * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}

func questionMap(st session.State) []string {
	var rows []string
	var row strings.Builder
	for i, q := range st.Questions {
		mark := " "
		switch {
		case st.IsFlagged(q.ID):
			mark = "?"
		case st.IsAnswered(q.ID):
			mark = "*"
		}
		cell := fmt.Sprintf(" %2d%s ", i+1, mark)
		if i == st.CurrentIndex {
			cell = fmt.Sprintf("[%2d%s]", i+1, mark)
		}
		row.WriteString(cell)
		if (i+1)%mapColumns == 0 {
			rows = append(rows, row.String())
			row.Reset()
		}
	}
	if row.Len() > 0 {
		rows = append(rows, row.String())
	}
	return rows
}

func footer(s Screen) string {
	switch s.Mode {
	case ModeJump:
		return fmt.Sprintf("Go to question: %s_  (Enter to jump, Esc to cancel)", s.JumpInput)
	case ModeConfirmSubmit:
		return fmt.Sprintf("Submit now? %d of %d answered. (y to submit, any other key to go back)",
			s.State.AnsweredCount(), len(s.State.Questions))
	case ModeSubmitting:
		return "Submitting..."
	default:
		return "1-9 answer  f flag  n/→ next  p/← prev  m map  s submit  q quit"
	}
}
