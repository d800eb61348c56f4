// Package safety classifies inbound text before it can reach the model.
// Rules are named and evaluated in a fixed declared order; the first match
// wins, so precedence is explicit rather than implied by an if-chain.
package safety

import "strings"

// Kind tags the classification outcome of one inbound message.
type Kind int

const (
	// Clean continues to normal processing with no annotation.
	Clean Kind = iota
	// OptOut toggles the marketing opt-out and short-circuits.
	OptOut
	// ContinuationPayload consumes the message as the deferred one-shot
	// payload (song fragment); the awaiting flag is cleared regardless of
	// what happens next.
	ContinuationPayload
	// ContinuationTrigger arms the deferred one-shot mode for the next
	// message and returns an acknowledgement.
	ContinuationTrigger
	// Sensitive returns a fixed deflection; no model call, no history, no
	// strike effect.
	Sensitive
	// TargetedAbuse feeds the two-strike escalation.
	TargetedAbuse
	// Vent continues to normal processing with a context note attached.
	Vent
)

// Verdict is the classification result plus the rule that produced it.
type Verdict struct {
	Kind Kind
	Rule string
}

// Input is the precomputed view of one message handed to every rule.
type Input struct {
	Lowered   string
	Collapsed string
	// AwaitingContinuation mirrors the record's single-turn deferred flag.
	AwaitingContinuation bool
}

// Rule is one named classification check.
type Rule struct {
	Name  string
	Kind  Kind
	Match func(in Input) bool
}

// Classifier evaluates its rules in declaration order.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds the default rule chain in spec priority order.
func NewClassifier() *Classifier {
	return &Classifier{rules: []Rule{
		{
			Name:  "opt_out",
			Kind:  OptOut,
			Match: func(in Input) bool { return optOutRE.MatchString(in.Lowered) },
		},
		{
			Name:  "continuation_payload",
			Kind:  ContinuationPayload,
			Match: func(in Input) bool { return in.AwaitingContinuation },
		},
		{
			Name:  "continuation_trigger",
			Kind:  ContinuationTrigger,
			Match: func(in Input) bool { return lyricsTriggerRE.MatchString(in.Lowered) },
		},
		{
			Name:  "sensitive_topic",
			Kind:  Sensitive,
			Match: func(in Input) bool { return matchesSensitive(in.Lowered, in.Collapsed) },
		},
		{
			Name:  "targeted_abuse",
			Kind:  TargetedAbuse,
			Match: func(in Input) bool { return isTargetedAbuse(in.Lowered) },
		},
		{
			Name:  "vent",
			Kind:  Vent,
			Match: func(in Input) bool { return profanityRE.MatchString(in.Lowered) },
		},
	}}
}

// Classify runs the rule chain over one message. awaiting carries the
// record's deferred-continuation flag.
func (c *Classifier) Classify(text string, awaiting bool) Verdict {
	lowered := strings.ToLower(strings.TrimSpace(text))
	in := Input{
		Lowered:              lowered,
		Collapsed:            Collapse(lowered),
		AwaitingContinuation: awaiting,
	}

	for _, rule := range c.rules {
		if rule.Match(in) {
			return Verdict{Kind: rule.Kind, Rule: rule.Name}
		}
	}

	return Verdict{Kind: Clean, Rule: "clean"}
}

// isTargetedAbuse requires general profanity plus a co-occurring target:
// the companion's name, any target word, or a second-person pronoun
// alongside a smear term.
func isTargetedAbuse(lowered string) bool {
	if !profanityRE.MatchString(lowered) {
		return false
	}
	if !smearRE.MatchString(lowered) {
		return false
	}

	if companionNamed(lowered) {
		return true
	}
	if targetRE.MatchString(lowered) {
		return true
	}
	return secondPersonRE.MatchString(lowered)
}
