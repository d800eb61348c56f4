package safety

import (
	"regexp"
	"strings"
)

// wordChars is the alphabet used for word boundaries. RE2's \b and \w are
// ASCII-only, so Cyrillic terms need explicit boundary classes.
const wordChars = `a-zа-яё0-9_`

// bounded wraps a pattern with non-word-character boundaries suitable for
// mixed Cyrillic/Latin text. Matching is done on lowered input.
func bounded(pattern string) string {
	return `(?:^|[^` + wordChars + `])(?:` + pattern + `)(?:$|[^` + wordChars + `])`
}

// boundedStem wraps a pattern with a leading boundary only, so inflected
// suffixes after the stem still match.
func boundedStem(pattern string) string {
	return `(?:^|[^` + wordChars + `])(?:` + pattern + `)`
}

// collapseRE strips everything outside the target alphabet and digits; the
// collapsed form defeats spacing and punctuation obfuscation.
var collapseRE = regexp.MustCompile(`[^a-zа-яё0-9]+`)

// Collapse returns the lowered text with all separators removed.
func Collapse(lowered string) string {
	return collapseRE.ReplaceAllString(lowered, "")
}

// optOutRE matches the exact unsubscribe phrases on trimmed lowered text.
var optOutRE = regexp.MustCompile(`^(?:стоп|stop)[.!…\s]*$`)

// sensitiveLiterals cover self-harm, weapons, and violence topics. They are
// checked as substrings of both the lowered and the collapsed text.
var sensitiveLiterals = []string{
	"убил", "убить", "убий", "расстрел", "пистолет", "оружие", "покончить", "суицид", "поджечь", "расправиться",
	"монстр", "уберу", "лишить жизни", "покончу", "насилие", "насиловать", "изнасил", "ударить ножом", "зарезать",
	"повеситься", "самоуб", "пулю", "нож", "бомб", "теракт",
	"kill", "suicide", "murder", "shoot", "gun", "weapon", "hurt myself", "end my life", "self harm", "violence",
	"rape", "assault", "stab", "bomb",
}

// sensitiveRegexes catch obfuscated spellings the literal list misses.
var sensitiveRegexes = []*regexp.Regexp{
	regexp.MustCompile(`нас[^a-zа-яё0-9]*и[^a-zа-яё0-9]*ли[^a-zа-яё0-9]*е`),
	regexp.MustCompile(`само[^a-zа-яё0-9]*уб`),
	regexp.MustCompile(`(?:рас|из)стрел`),
	regexp.MustCompile(`из[^a-zа-яё0-9]*насил`),
	regexp.MustCompile(`self[^a-z0-9]*harm`),
	regexp.MustCompile(`\b(?:shoot|stab|bomb)\w*`),
}

// targetRE matches second-person pronouns, the companion's name, and
// assistant words: anything a smear can be aimed at.
var targetRE = regexp.MustCompile(bounded(strings.Join([]string{
	`ты`, `тебя`, `тебе`, `тобой`, `тобою`,
	`тво(?:й|я|и|ю|ё|ей|их)`,
	`вы`, `вас`, `вам`, `вами`,
	`ваш(?:а|е|и)?`,
	`бот(?:а|у|ом|ы|ик|ика|ику|иком)?`,
	`люми`, `lumi`,
	`ассистент(?:а|у|ом|ка)?`, `assistant`, `ai`,
	`you`, `your?s?`, `u`,
}, "|")))

// secondPersonRE is the narrower "any second-person pronoun" check.
var secondPersonRE = regexp.MustCompile(bounded(
	`ты|тебе|тебя|тобой|твой|твои|вы|вас|вам|вами|ваш|you|your`,
))

// smearRE matches direct insult terms with inflected suffixes.
var smearRE = regexp.MustCompile(boundedStem(strings.Join([]string{
	`туп(?:ая|ой)`, `дур[ао]`, `идиотк?а`, `кретинк?а?`, `мразь`, `сука`, `тварь`,
	`шлюх[а-яё]*`, `проститутк[а-яё]*`, `скотин[а-яё]*`,
	`ебан[а-яё]*`, `ёбан[а-яё]*`, `ебуч[а-яё]*`, `хуев[а-яё]*`, `хуёв[а-яё]*`, `xy[еe]в\w*`,
	`fuck\w*`, `bitch\w*`, `asshole`, `stfu`, `moron`,
}, "|")))

// profanityRE is the broad lexicon: stems with a leading boundary so
// suffixed forms match but embedded letters ("небо", "себя") do not.
var profanityRE = regexp.MustCompile(boundedStem(strings.Join([]string{
	`хуй`, `хуя`, `хуе`, `хуё`, `пизд`, `еб`, `ёб`, `бляд`, `сука`, `сучк`,
	`дерьм`, `говн`, `мраз`, `мудак`, `урод`, `оху`, `аху`, `хрен`, `черт`, `нах`,
	`fuck\w*`, `shit`, `damn`, `bitch`, `asshole`, `wtf`, `motherfucker`,
	`screw you`,
}, "|")))

// lyricsTriggerRE detects requests to guess or continue a song.
var lyricsTriggerRE = regexp.MustCompile(strings.Join([]string{
	boundedStem(`(?:скажу|напишу|дам)\s+фраз[а-яё]*\s+из\s+песн`),
	boundedStem(`продолжи(?:ть)?\s+(?:эту\s+)?песн`),
	boundedStem(`(?:угадай|загадал[аи]?|вспомни)\s+песн`),
	`\bcontinue\s+(?:the\s+)?song`,
	`\b(?:give|send)\s+you\s+a\s+lyric`,
	`\bguess\s+the\s+lyrics?`,
}, "|"))

// companionNamed reports a direct mention of the companion.
func companionNamed(lowered string) bool {
	return strings.Contains(lowered, "лум") || strings.Contains(lowered, "lumi")
}

// matchesSensitive runs the two-pass lexicon check: literals against both
// the lowered and collapsed forms, then the obfuscation regexes likewise.
func matchesSensitive(lowered, collapsed string) bool {
	for _, literal := range sensitiveLiterals {
		cleaned := strings.ReplaceAll(literal, " ", "")
		if strings.Contains(lowered, literal) || strings.Contains(collapsed, cleaned) {
			return true
		}
	}
	for _, re := range sensitiveRegexes {
		if re.MatchString(lowered) || re.MatchString(collapsed) {
			return true
		}
	}
	return false
}
