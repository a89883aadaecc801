package nlu

import "regexp"

// clockTime is the spoken clock-time grammar: 1-2 digit hour, optional
// :MM, optional am/pm. The am/pm suffix carries its own leading space so a
// bare hour never captures trailing whitespace.
const clockTime = `\d{1,2}(?::\d{2})?(?:\s?(?:am|pm))?`

var clockTimeRe = regexp.MustCompile(`(?i)\b(` + clockTime + `)\b`)

// ExtractTime returns the first clock-time found anywhere in text, or nil.
func ExtractTime(text string) *string {
	m := clockTimeRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	t := m[1]
	return &t
}
