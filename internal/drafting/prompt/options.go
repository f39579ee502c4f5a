// internal/drafting/prompt/options.go
package prompt

import "fmt"

type Tone string

const (
	ToneFriendly   Tone = "friendly"
	ToneFormal     Tone = "formal"
	ToneEmpathetic Tone = "empathetic"
)

type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// MaxTokens is the completion ceiling for a length preset.
func (l Length) MaxTokens() int {
	switch l {
	case LengthShort:
		return 300
	case LengthLong:
		return 1000
	default:
		return 600
	}
}

func (l Length) guidance() string {
	switch l {
	case LengthShort:
		return "Keep the reply short: two to four sentences."
	case LengthLong:
		return "A detailed reply is fine: cover each step the customer needs, using a numbered list where it helps."
	default:
		return "Keep the reply to one or two short paragraphs."
	}
}

func (t Tone) guidance() string {
	switch t {
	case ToneFormal:
		return "Use a professional, formal tone."
	case ToneEmpathetic:
		return "Use a warm, empathetic tone and acknowledge the customer's frustration."
	default:
		return "Use a friendly, conversational tone."
	}
}

type Options struct {
	Tone        Tone
	Length      Length
	CompanyName string
	AgentName   string
}

func DefaultOptions() Options {
	return Options{Tone: ToneFriendly, Length: LengthMedium}
}

func (o *Options) Validate() error {
	switch o.Tone {
	case ToneFriendly, ToneFormal, ToneEmpathetic:
	default:
		return fmt.Errorf("unknown tone %q", o.Tone)
	}
	switch o.Length {
	case LengthShort, LengthMedium, LengthLong:
	default:
		return fmt.Errorf("unknown length %q", o.Length)
	}
	return nil
}
