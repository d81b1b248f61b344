package console

// Kind is a decoded key press.
type Kind int

const (
	KeyUnknown Kind = iota
	KeyDigit
	KeyFlag
	KeyNext
	KeyPrev
	KeyMap
	KeySubmit
	KeyQuit
	KeyEnter
	KeyBackspace
	KeyYes
	KeyNo
)

// Event is one key press. Digit is set for KeyDigit.
type Event struct {
	Kind  Kind
	Digit int
}

// Decode turns raw terminal input into events. Arrow keys arrive as
// ESC [ C / ESC [ D.
func Decode(buf []byte) []Event {
	var out []Event
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		switch {
		case b == 0x1b && i+2 < len(buf) && buf[i+1] == '[':
			switch buf[i+2] {
			case 'C':
				out = append(out, Event{Kind: KeyNext})
			case 'D':
				out = append(out, Event{Kind: KeyPrev})
			default:
				out = append(out, Event{Kind: KeyUnknown})
			}
			i += 2
		case b >= '0' && b <= '9':
			out = append(out, Event{Kind: KeyDigit, Digit: int(b - '0')})
		case b == 'f' || b == 'F':
			out = append(out, Event{Kind: KeyFlag})
		case b == 'n' || b == 'N':
			out = append(out, Event{Kind: KeyNext})
		case b == 'p' || b == 'P':
			out = append(out, Event{Kind: KeyPrev})
		case b == 'm' || b == 'M':
			out = append(out, Event{Kind: KeyMap})
		case b == 's' || b == 'S':
			out = append(out, Event{Kind: KeySubmit})
		case b == 'q' || b == 'Q' || b == 0x03:
			out = append(out, Event{Kind: KeyQuit})
		case b == 'y' || b == 'Y':
			out = append(out, Event{Kind: KeyYes})
		case b == '\r' || b == '\n':
			out = append(out, Event{Kind: KeyEnter})
		case b == 0x7f || b == 0x08:
			out = append(out, Event{Kind: KeyBackspace})
		case b == 0x1b:
			out = append(out, Event{Kind: KeyNo})
		default:
			out = append(out, Event{Kind: KeyUnknown})
		}
	}
	return out
}
