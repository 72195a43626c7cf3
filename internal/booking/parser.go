// Package booking interprets booking commands embedded in assistant replies and
// applies them to the booking store.
//
// The assistant marks commands with tags such as [CREATE_BOOKING] followed by
// [TITLE: ...] detail lines, or [ACTION: CONFIRM]. Parse extracts at most one
// command; the Executor applies it and rewrites the reply text.
package booking

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies which command a reply carries.
type Kind int

const (
	NoAction Kind = iota
	CreateBooking
	ConfirmBooking
	CancelBooking
	StatusQuery
)

func (k Kind) String() string {
	switch k {
	case CreateBooking:
		return "create"
	case ConfirmBooking:
		return "confirm"
	case CancelBooking:
		return "cancel"
	case StatusQuery:
		return "status"
	}
	return "none"
}

// Details are the booking fields carried by a CREATE_BOOKING command.
type Details struct {
	Title  string
	Type   string
	Date   string
	Time   string
	Amount *float64
}

// Action is the single command found in a reply.
type Action struct {
	Kind Kind
	// Details is set for CreateBooking only.
	Details *Details
	// Codes lists the confirmation-code-shaped tokens in the reply, in order.
	Codes []string
	// Text is the reply with every tag removed.
	Text string
}

var (
	createTagRe = regexp.MustCompile(`(?i)\[?[ \t]*CREATE_BOOKING[ \t]*\]?`)
	detailTagRe = regexp.MustCompile(`(?i)\[\s*(TITLE|TYPE|DATE|TIME|AMOUNT)\s*:\s*([^\]\n]*?)\s*\]`)
	// Bare "TITLE: x" lines only count next to a CREATE_BOOKING tag.
	detailLineRe = regexp.MustCompile(`(?im)^[ \t]*(TITLE|TYPE|DATE|TIME|AMOUNT)[ \t]*:[ \t]*(.*?)[ \t]*$`)
	codeTokenRe = regexp.MustCompile(`\b[A-Z0-9]{6}\b`)
	amountRe    = regexp.MustCompile(`\d[\d,.]*`)
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
	spaceRunRe  = regexp.MustCompile(`[ \t]{2,}`)
)

// actionTagRes recognise ACTION tags in order of stripping: bracketed in any
// case, bare at the start of a line in any case, and bare upper-case anywhere.
// The verb must end at a word boundary so CONFIRMED is not CONFIRM.
var actionTagRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[[ \t]*ACTION[ \t]*:[ \t]*(CONFIRM|CANCEL|STATUS)\b[ \t]*\]`),
	regexp.MustCompile(`(?im)^[ \t]*ACTION[ \t]*:[ \t]*(CONFIRM|CANCEL|STATUS)\b`),
	regexp.MustCompile(`\bACTION[ \t]*:[ \t]*(CONFIRM|CANCEL|STATUS)\b`),
}

// reserved words that are shaped like confirmation codes.
var reservedTokens = map[string]bool{"ACTION": true, "CANCEL": true, "STATUS": true}

// Parse extracts the highest-precedence command from text:
// CREATE_BOOKING, then CONFIRM, then CANCEL, then STATUS.
func Parse(text string) Action {
	act := Action{Kind: NoAction, Codes: codeTokens(text)}

	hasCreate := createTagRe.MatchString(text)
	if hasCreate {
		act.Kind = CreateBooking
		act.Details = parseDetails(text)
	} else {
		act.Kind = strongestAction(text)
	}
	act.Text = StripTags(text)
	return act
}

func strongestAction(text string) Kind {
	found := NoAction
	var matches [][]string
	for _, re := range actionTagRes {
		matches = append(matches, re.FindAllStringSubmatch(text, -1)...)
	}
	for _, m := range matches {
		var k Kind
		switch strings.ToUpper(m[1]) {
		case "CONFIRM":
			k = ConfirmBooking
		case "CANCEL":
			k = CancelBooking
		case "STATUS":
			k = StatusQuery
		}
		if found == NoAction || k < found {
			found = k
		}
	}
	return found
}

func parseDetails(text string) *Details {
	d := &Details{}
	seen := map[string]bool{}
	matches := append(detailTagRe.FindAllStringSubmatch(text, -1), detailLineRe.FindAllStringSubmatch(text, -1)...)
	for _, m := range matches {
		name, value := strings.ToUpper(m[1]), m[2]
		value = strings.TrimSpace(value)
		if seen[name] || value == "" {
			continue
		}
		seen[name] = true
		switch name {
		case "TITLE":
			d.Title = value
		case "TYPE":
			d.Type = value
		case "DATE":
			d.Date = value
		case "TIME":
			d.Time = value
		case "AMOUNT":
			d.Amount = ParseAmount(value)
		}
	}
	return d
}

// ParseAmount takes the first number-like run (digits, commas, dots), drops
// the commas and parses it. It returns nil when nothing numeric is present.
func ParseAmount(s string) *float64 {
	run := amountRe.FindString(s)
	if run == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(run, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}

func codeTokens(text string) []string {
	var codes []string
	for _, tok := range codeTokenRe.FindAllString(text, -1) {
		if !reservedTokens[tok] {
			codes = append(codes, tok)
		}
	}
	return codes
}

// StripTags removes every command and detail tag and tidies the whitespace left behind.
// Tags are replaced with a space so the words around them stay apart.
func StripTags(text string) string {
	if createTagRe.MatchString(text) {
		text = detailLineRe.ReplaceAllString(text, "")
	}
	text = createTagRe.ReplaceAllString(text, " ")
	for _, re := range actionTagRes {
		text = re.ReplaceAllString(text, " ")
	}
	text = detailTagRe.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRunRe.ReplaceAllString(l, " "))
	}
	text = blankRunRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text)
}
