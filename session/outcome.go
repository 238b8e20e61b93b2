package session

import "fmt"

// Kind tags an Outcome.
type Kind int

const (
	Authorized Kind = iota
	Denied
	Unrecognized
	ConnectionFailed
	Timeout
)

func (k Kind) String() string {
	switch k {
	case Authorized:
		return "authorized"
	case Denied:
		return "denied"
	case Unrecognized:
		return "unrecognized"
	case ConnectionFailed:
		return "connection_failed"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of one authorization attempt. Text holds the raw
// response for Unrecognized; Err carries transport detail for
// ConnectionFailed and Timeout.
type Outcome struct {
	Kind Kind
	Text string
	Err  error
}

func (o Outcome) String() string {
	switch o.Kind {
	case Unrecognized:
		return fmt.Sprintf("unrecognized(%q)", o.Text)
	case ConnectionFailed, Timeout:
		if o.Err != nil {
			return fmt.Sprintf("%s: %v", o.Kind, o.Err)
		}
	}
	return o.Kind.String()
}

// Classify maps response text to an Outcome. Only the exact tokens count.
func Classify(text string) Outcome {
	switch text {
	case "AUTHORIZED":
		return Outcome{Kind: Authorized}
	case "DENIED":
		return Outcome{Kind: Denied}
	default:
		return Outcome{Kind: Unrecognized, Text: text}
	}
}
