package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name     string
		text     string
		awaiting bool
		kind     Kind
		rule     string
	}{
		{name: "opt out russian", text: "Стоп", kind: OptOut, rule: "opt_out"},
		{name: "opt out with punctuation", text: "stop!!!", kind: OptOut, rule: "opt_out"},
		{name: "stop inside sentence is not opt out", text: "стоп, давай сменим тему", kind: Clean, rule: "clean"},

		{name: "awaiting consumes payload", text: "ночь, улица, фонарь, аптека", awaiting: true, kind: ContinuationPayload, rule: "continuation_payload"},
		{name: "opt out beats payload", text: "стоп", awaiting: true, kind: OptOut, rule: "opt_out"},
		{name: "song trigger arms mode", text: "давай продолжи песню за меня", kind: ContinuationTrigger, rule: "continuation_trigger"},
		{name: "english song trigger", text: "can you continue the song?", kind: ContinuationTrigger, rule: "continuation_trigger"},

		{name: "sensitive literal", text: "иногда хочу покончить с собой", kind: Sensitive, rule: "sensitive_topic"},
		{name: "sensitive english", text: "i want to hurt myself", kind: Sensitive, rule: "sensitive_topic"},
		{name: "sensitive spaced obfuscation", text: "мысли про с а м о у б и й с т в о", kind: Sensitive, rule: "sensitive_topic"},
		{name: "sensitive dotted obfuscation", text: "думаю про н.а.с.и.л.и.е", kind: Sensitive, rule: "sensitive_topic"},

		{name: "abuse at second person", text: "ты тупая сука", kind: TargetedAbuse, rule: "targeted_abuse"},
		{name: "abuse at companion by name", text: "люми ебаная дура", kind: TargetedAbuse, rule: "targeted_abuse"},
		{name: "abuse english", text: "fuck you, you are a bitch", kind: TargetedAbuse, rule: "targeted_abuse"},

		{name: "vent without target", text: "блядь, как же всё достало", kind: Vent, rule: "vent"},
		{name: "vent about a third party", text: "начальник мудак, опять нахуй всё переделывать", kind: Vent, rule: "vent"},

		{name: "plain message", text: "расскажи мне про небо", kind: Clean, rule: "clean"},
		{name: "stems do not fire inside words", text: "потребовалось себя пересилить", kind: Clean, rule: "clean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(tt.text, tt.awaiting)
			assert.Equal(t, tt.kind, v.Kind)
			assert.Equal(t, tt.rule, v.Rule)
		})
	}
}

func TestSensitiveHasNoStrikeEffectMarker(t *testing.T) {
	c := NewClassifier()

	// profanity plus a sensitive topic: the sensitive rule must win.
	v := c.Classify("блядь, я хочу покончить с собой", false)
	assert.Equal(t, Sensitive, v.Kind)
}

func TestCollapse(t *testing.T) {
	assert.Equal(t, "самоубийство", Collapse("с а м о-у-б и й с т в о"))
	assert.Equal(t, "selfharm", Collapse("self  harm"))
}
