package nlu

import (
	"fmt"
	"regexp"
	"strings"
)

// Match is one successful pattern match. Only groups that took part in the
// match are present.
type Match struct {
	Text   string
	groups map[string]string
}

func (m Match) Group(name string) (string, bool) {
	v, ok := m.groups[name]
	return v, ok
}

type Matcher interface {
	Match(text string) (Match, bool)
}

// Pattern compiles an RE2 expression into a Matcher. RE2 runs in time linear
// in the input, so no rule can blow up on pathological text.
func Pattern(expr string) Matcher {
	return patternMatcher{re: regexp.MustCompile(expr)}
}

type patternMatcher struct {
	re *regexp.Regexp
}

func (p patternMatcher) Match(text string) (Match, bool) {
	loc := p.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false
	}

	m := Match{
		Text:   text[loc[0]:loc[1]],
		groups: make(map[string]string),
	}
	for i, name := range p.re.SubexpNames() {
		if name == "" || loc[2*i] < 0 {
			continue
		}
		m.groups[name] = text[loc[2*i]:loc[2*i+1]]
	}
	return m, true
}

// FirstOf tries each matcher in order and returns the first hit.
func FirstOf(ms ...Matcher) Matcher {
	return firstOf(ms)
}

type firstOf []Matcher

func (f firstOf) Match(text string) (Match, bool) {
	for _, m := range f {
		if hit, ok := m.Match(text); ok {
			return hit, true
		}
	}
	return Match{}, false
}

// When gates m on a test over the whole text.
func When(m Matcher, cond func(text string) bool) Matcher {
	return guarded{m: m, cond: cond}
}

type guarded struct {
	m    Matcher
	cond func(string) bool
}

func (g guarded) Match(text string) (Match, bool) {
	if !g.cond(text) {
		return Match{}, false
	}
	return g.m.Match(text)
}

type Responder func(c *Classifier, m Match, res *Result)

type Rule struct {
	Intent  Intent
	Matcher Matcher
	Respond Responder
}

// words is the \w class of the rule grammar, widened to any Unicode letter
// since transcripts are not ASCII-only.
const words = `[\p{L}\p{N}_\s]+`

// defaultRules is evaluated top to bottom and the first hit wins.
// set_reminder_full must stay ahead of set_reminder_partial.
var defaultRules = []Rule{
	{
		Intent:  IntentTurnOnDevice,
		Matcher: Pattern(`(?i)\b(?:turn on|switch on|activate|turning on)\s+(?:the\s+)?(?P<device>` + words + `)`),
		Respond: respondDevice("Turning on"),
	},
	{
		Intent:  IntentTurnOffDevice,
		Matcher: Pattern(`(?i)\b(?:turn off|switch off|deactivate|turning off)\s+(?:the\s+)?(?P<device>` + words + `)`),
		Respond: respondDevice("Turning off"),
	},
	{
		Intent:  IntentGetWeather,
		Matcher: Pattern(`(?i)(?:what(?:['’]s| is) the weather|weather (?:like )?today)`),
		Respond: respondFixed("Checking the skies for you... Hang tight!"),
	},
	{
		Intent:  IntentSetReminderFull,
		Matcher: Pattern(`(?i)remind me(?: to)? (?P<task>.+?) at (?P<time>` + clockTime + `)`),
		Respond: func(_ *Classifier, m Match, res *Result) {
			task, _ := m.Group("task")
			at, _ := m.Group("time")
			res.Task = strings.TrimSpace(task)
			res.Time = &at
			res.Response = fmt.Sprintf("Reminder set for: '%s' at %s.", res.Task, at)
		},
	},
	{
		Intent:  IntentSetReminderPartial,
		Matcher: Pattern(`(?i)remind me(?: to)? (?P<task>` + words + `)`),
		Respond: func(_ *Classifier, m Match, res *Result) {
			task, _ := m.Group("task")
			res.Task = strings.TrimSpace(task)
			res.Time = nil
			res.Response = fmt.Sprintf("Got it! Reminder for '%s' – but I’ll need a time to schedule it.", res.Task)
		},
	},
	{
		Intent:  IntentSetAlarm,
		Matcher: FirstOf(
			Pattern(`(?i)\b(?:set|wake me(?: up)?|wake up) (?:an |the )?alarm(?: (?:for |at )?(?P<time>` + clockTime + `))?`),
			// a bare "wake up" is only an alarm when a time is said
			When(
				Pattern(`(?i)\b(?:wake me(?: up)?|wake up)(?: (?:for |at )?(?P<time>` + clockTime + `))?`),
				func(text string) bool { return ExtractTime(text) != nil },
			),
		),
		Respond: func(_ *Classifier, m Match, res *Result) {
			if at, ok := m.Group("time"); ok {
				res.Time = &at
			} else {
				res.Time = ExtractTime(res.Transcript)
			}
			res.Response = fmt.Sprintf("Alarm is set for %s.", displayTime(res.Time))
		},
	},
	{
		Intent:  IntentPlayMusic,
		Matcher: Pattern(`(?i)play (?:some )?(?P<genre>` + words + `)?\s?music`),
		Respond: func(_ *Classifier, m Match, res *Result) {
			genre, _ := m.Group("genre")
			genre = strings.TrimSpace(genre)
			if genre == "" {
				genre = favoriteGenre
			}
			res.Genre = genre
			res.Response = fmt.Sprintf("Playing %s music.", genre)
		},
	},
	{
		Intent:  IntentJoona,
		Matcher: Pattern(`(?i)\b(?:joona|jonah|juna|joonah)\b`),
		Respond: respondFixed("Hey! It’s me Joona. Always ready to vibe or help!"),
	},
	{
		Intent:  IntentEmotionSad,
		Matcher: Pattern(`(?i)\b(?:(?:i['’ ]?m|i am)\s?)?(?:sad|upset|depressed|crying|not okay)\b`),
		Respond: respondEmotion(emotionSad),
	},
	{
		Intent:  IntentEmotionHappy,
		Matcher: Pattern(`(?i)\b(?:(?:i['’ ]?m|i am)\s?)?(?:happy|excited|overjoyed|so glad|grateful)\b`),
		Respond: respondEmotion(emotionHappy),
	},
	{
		Intent:  IntentGreeting,
		Matcher: Pattern(`(?i)\b(?:hi|hello|hey|good morning|good afternoon|salaam)\b`),
		Respond: func(c *Classifier, _ Match, res *Result) {
			res.Response = c.pick(c.phrases.Greetings)
		},
	},
	{
		Intent:  IntentFarewell,
		Matcher: Pattern(`(?i)\b(?:bye|goodbye|see you|good night|take care)\b`),
		Respond: func(c *Classifier, _ Match, res *Result) {
			res.Response = c.pick(c.phrases.Farewells)
		},
	},
	{
		Intent:  IntentTellJoke,
		Matcher: Pattern(`(?i)(?:tell me a joke|make me laugh|i want to laugh)`),
		Respond: func(c *Classifier, _ Match, res *Result) {
			res.Response = c.pick(c.phrases.Jokes)
		},
	},
}

// Rules returns a copy of the default rule table in evaluation order.
func Rules() []Rule {
	return append([]Rule(nil), defaultRules...)
}

func respondFixed(reply string) Responder {
	return func(_ *Classifier, _ Match, res *Result) {
		res.Response = reply
	}
}

func respondDevice(action string) Responder {
	return func(_ *Classifier, m Match, res *Result) {
		device, _ := m.Group("device")
		res.Device = strings.TrimSpace(device)
		res.Response = fmt.Sprintf("%s the %s.", action, res.Device)
	}
}

func respondEmotion(emotion string) Responder {
	return func(c *Classifier, _ Match, res *Result) {
		res.Emotion = emotion
		res.Response = fmt.Sprintf("I can tell you're %s. %s", emotion, c.phrases.Emotions[emotion])
	}
}

// displayTime renders an alarm time; a missing time is tolerated.
func displayTime(t *string) string {
	if t == nil {
		return "an unspecified time"
	}
	return *t
}
