package booking

import (
	"strings"
	"testing"
)

func TestParseKinds(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Kind
	}{
		{"plain text", "Sure, happy to help!", NoAction},
		{"create", "Great!\n[CREATE_BOOKING]\n[TITLE: Table for 2]", CreateBooking},
		{"create without brackets", "CREATE_BOOKING\n[TITLE: Spa]", CreateBooking},
		{"confirm", "Done. [ACTION: CONFIRM]", ConfirmBooking},
		{"confirm lower case no brackets", "action: confirm thanks", ConfirmBooking},
		{"cancel", "[ACTION:CANCEL] Sorry to see you go", CancelBooking},
		{"status", "Here you go [ACTION: STATUS]", StatusQuery},
		{"create beats confirm", "[ACTION: CONFIRM] [CREATE_BOOKING] [TITLE: X]", CreateBooking},
		{"confirm beats cancel", "[ACTION: CANCEL] [ACTION: CONFIRM]", ConfirmBooking},
		{"cancel beats status", "[ACTION: STATUS] [ACTION: CANCEL]", CancelBooking},
		{"upper case mid sentence", "Sure ACTION: CANCEL done", CancelBooking},
		{"bare tag on its own line", "Noted.\naction: status", StatusQuery},
		{"longer verb is not a tag", "Great news [ACTION: CONFIRMED] done", NoAction},
		{"prose mentioning an action", "Your next action: confirm the venue with our team.", NoAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.in).Kind; got != tt.want {
				t.Errorf("Parse(%q).Kind = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseCreateDetails(t *testing.T) {
	in := "Lovely, I've noted that.\n[CREATE_BOOKING]\n[TITLE: Dinner for 4]\n[TYPE: reservation]\n[DATE: Friday]\n[TIME: 8pm]\n[AMOUNT: Rs. 2,500.50 approx]"
	act := Parse(in)
	if act.Kind != CreateBooking || act.Details == nil {
		t.Fatalf("expected create action, got %+v", act)
	}
	d := act.Details
	if d.Title != "Dinner for 4" || d.Type != "reservation" || d.Date != "Friday" || d.Time != "8pm" {
		t.Errorf("unexpected details %+v", d)
	}
	if d.Amount == nil || *d.Amount != 2500.50 {
		t.Errorf("unexpected amount %v", d.Amount)
	}
	if act.Text != "Lovely, I've noted that." {
		t.Errorf("tags not stripped: %q", act.Text)
	}
}

func TestParseCreateBareDetailLines(t *testing.T) {
	act := Parse("CREATE_BOOKING\nTITLE: Haircut\nAMOUNT: none\nSee you soon")
	if act.Details.Title != "Haircut" {
		t.Errorf("unexpected title %q", act.Details.Title)
	}
	if act.Details.Amount != nil {
		t.Errorf("expected nil amount, got %v", *act.Details.Amount)
	}
	if act.Text != "See you soon" {
		t.Errorf("unexpected text %q", act.Text)
	}
}

func TestBareDetailLinesKeptWithoutCreate(t *testing.T) {
	act := Parse("Your slot:\nTime: 5pm")
	if act.Kind != NoAction || !strings.Contains(act.Text, "Time: 5pm") {
		t.Errorf("unexpected action %+v", act)
	}
}

func TestParseCodes(t *testing.T) {
	act := Parse("ACTION: CONFIRM please confirm AB12CD and CANCEL nothing")
	if len(act.Codes) != 1 || act.Codes[0] != "AB12CD" {
		t.Errorf("unexpected codes %v", act.Codes)
	}
	if strings.Contains(act.Text, "ACTION") {
		t.Errorf("action tag left in text %q", act.Text)
	}
	if !strings.Contains(act.Text, "AB12CD") {
		t.Errorf("code should stay visible: %q", act.Text)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1,250", 1250, true},
		{"₹ 99.5", 99.5, true},
		{"free", 0, false},
		{"...", 0, false},
	}
	for _, tt := range tests {
		got := ParseAmount(tt.in)
		if tt.ok != (got != nil) {
			t.Errorf("ParseAmount(%q) = %v, want ok=%v", tt.in, got, tt.ok)
			continue
		}
		if got != nil && *got != tt.want {
			t.Errorf("ParseAmount(%q) = %v, want %v", tt.in, *got, tt.want)
		}
	}
}

func TestStripTagsCollapsesBlankLines(t *testing.T) {
	got := StripTags("Hello\n\n[ACTION: STATUS]\n\n\nBye")
	if got != "Hello\n\nBye" {
		t.Errorf("unexpected %q", got)
	}
}

func TestParseLeavesNonTagTextIntact(t *testing.T) {
	tests := []string{
		"Great news [ACTION: CONFIRMED] done",
		"Your next action: confirm the venue with our team.",
	}
	for _, in := range tests {
		if got := Parse(in).Text; got != in {
			t.Errorf("Parse(%q).Text = %q, want it unchanged", in, got)
		}
	}
}

func TestStripTagsKeepsWordsApart(t *testing.T) {
	got := StripTags("Thanks[ACTION: CONFIRM]see you Friday")
	if got != "Thanks see you Friday" {
		t.Errorf("unexpected %q", got)
	}
}
