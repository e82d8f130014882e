package media

import (
	"fmt"
	"strings"
)

// Step is one post-session action, named by a single letter.
type Step rune

const (
	StepInfo        Step = 'i'
	StepPreview     Step = 'p'
	StepAudio       Step = 'a'
	StepPostprocess Step = 'x'
)

const validStepsHelp = "i=info, p=preview, a=audio, x=postprocess"

func (s Step) String() string {
	switch s {
	case StepInfo:
		return "info"
	case StepPreview:
		return "preview"
	case StepAudio:
		return "audio"
	case StepPostprocess:
		return "postprocess"
	default:
		return fmt.Sprintf("step(%c)", rune(s))
	}
}

// ParseSteps reads a step string such as "ipa". Repeated steps are kept
// once, in first-seen order.
func ParseSteps(pipeline string) ([]Step, error) {
	var steps []Step
	seen := map[Step]bool{}
	for _, r := range strings.ToLower(strings.TrimSpace(pipeline)) {
		step := Step(r)
		switch step {
		case StepInfo, StepPreview, StepAudio, StepPostprocess:
		default:
			return nil, fmt.Errorf("invalid pipeline step: '%c' (valid: %s)", r, validStepsHelp)
		}
		if !seen[step] {
			seen[step] = true
			steps = append(steps, step)
		}
	}
	return steps, nil
}
