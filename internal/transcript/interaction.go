package transcript

import "errors"

// ErrNoPrompt is returned when a transcript has no user prompt.
var ErrNoPrompt = errors.New("no user prompt in transcript")

// Interaction is the latest prompt and the reply to it.
type Interaction struct {
	Prompt   string
	Response string
}

// LastInteraction finds the last user prompt and the first assistant text
// that follows it.
func LastInteraction(records []Record) (Interaction, error) {
	last := -1
	for i, r := range records {
		if r.IsPrompt() {
			last = i
		}
	}
	if last < 0 {
		return Interaction{}, ErrNoPrompt
	}

	prompt := records[last]
	in := Interaction{Prompt: prompt.Message.Text()}
	after := prompt.Time()
	for _, r := range records[last+1:] {
		if r.Type != "assistant" || r.Message == nil {
			continue
		}
		if t := r.Time(); !after.IsZero() && !t.IsZero() && !t.After(after) {
			continue
		}
		if text := r.Message.FirstText(); text != "" {
			in.Response = text
			break
		}
	}
	return in, nil
}
