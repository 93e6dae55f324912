package invites

import "testing"

func TestBuildSessionLink(t *testing.T) {
	got, err := Build("https://rallypoint.app", DeepLink{SessionID: "sess_ab12", Phone: "555-0100"})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	want := "https://rallypoint.app/sess_ab12?invite=true&phone=555-0100"
	if got != want {
		t.Fatalf("Build = %q, want %q", got, want)
	}
}

func TestBuildGroupLink(t *testing.T) {
	got, err := Build("https://rallypoint.app/", DeepLink{GroupID: "grp_77", Phone: "+1 555 0100"})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	want := "https://rallypoint.app/g-grp_77?invite=true&phone=%2B1+555+0100"
	if got != want {
		t.Fatalf("Build = %q, want %q", got, want)
	}
}

func TestBuildRejectsAmbiguousTarget(t *testing.T) {
	if _, err := Build("https://rallypoint.app", DeepLink{SessionID: "s", GroupID: "g"}); err == nil {
		t.Fatal("expected error for both session and group set")
	}
	if _, err := Build("https://rallypoint.app", DeepLink{}); err == nil {
		t.Fatal("expected error for neither session nor group set")
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, link := range []DeepLink{
		{SessionID: "sess_ab12", Phone: "555-0100"},
		{GroupID: "grp_77", Phone: "+1 555 0100"},
	} {
		raw, err := Build("https://rallypoint.app", link)
		if err != nil {
			t.Fatalf("Build error: %v", err)
		}
		parsed, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", raw, err)
		}
		if parsed != link {
			t.Fatalf("Parse(%q) = %+v, want %+v", raw, parsed, link)
		}
	}
}

func TestParseRejectsNonInviteLinks(t *testing.T) {
	for _, raw := range []string{
		"https://rallypoint.app/sess_ab12",
		"https://rallypoint.app/sess_ab12?invite=false",
		"https://rallypoint.app/?invite=true",
		"https://rallypoint.app/g-?invite=true",
	} {
		if _, err := Parse(raw); err == nil {
			t.Errorf("Parse(%q) should fail", raw)
		}
	}
}
