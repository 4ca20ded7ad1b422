package llmfill

import "testing"

func TestParseMatchesDirectJSON(t *testing.T) {
	t.Parallel()

	matches, err := ParseMatches(`{"matches":[{"order":1,"candidateId":"c3","confidence":0.82}]}`)
	if err != nil {
		t.Fatalf("ParseMatches() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches len = %d, want 1", len(matches))
	}
	if matches[0].Order != 1 || matches[0].CandidateID != "c3" {
		t.Fatalf("match = %+v", matches[0])
	}
	if matches[0].Confidence == nil || *matches[0].Confidence != 0.82 {
		t.Fatalf("confidence = %v", matches[0].Confidence)
	}
}

func TestParseMatchesFencedCodeBlock(t *testing.T) {
	t.Parallel()

	reply := "Here is the result:\n```json\n{\"matches\":[{\"order\":2,\"candidateId\":\"c1\"}]}\n```\nDone."
	matches, err := ParseMatches(reply)
	if err != nil {
		t.Fatalf("ParseMatches() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Order != 2 || matches[0].CandidateID != "c1" {
		t.Fatalf("matches = %+v", matches)
	}
	if matches[0].Confidence != nil {
		t.Fatalf("confidence = %v, want nil for omitted field", matches[0].Confidence)
	}
}

func TestParseMatchesBraceSubstring(t *testing.T) {
	t.Parallel()

	reply := `Sure! {"matches":[{"order":3,"candidateId":"c7","confidence":1}]} hope that helps`
	matches, err := ParseMatches(reply)
	if err != nil {
		t.Fatalf("ParseMatches() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Order != 3 {
		t.Fatalf("matches = %+v", matches)
	}
}

func TestParseMatchesDiscardsMalformedEntries(t *testing.T) {
	t.Parallel()

	reply := `{"matches":[
		{"order":0,"candidateId":"c1"},
		{"order":2,"candidateId":"  "},
		{"order":2.0,"candidateId":"c2"}
	]}`
	matches, err := ParseMatches(reply)
	if err != nil {
		t.Fatalf("ParseMatches() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Order != 2 || matches[0].CandidateID != "c2" {
		t.Fatalf("matches = %+v", matches)
	}
}

func TestParseMatchesEmptyMatchesArray(t *testing.T) {
	t.Parallel()

	matches, err := ParseMatches(`{"matches":[]}`)
	if err != nil {
		t.Fatalf("ParseMatches() error = %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("matches = %+v, want none", matches)
	}
}

func TestParseMatchesRejectsUnusableReplies(t *testing.T) {
	t.Parallel()

	for _, reply := range []string{"", "no json here", `{"other":true}`, "```\nnot json\n```"} {
		if _, err := ParseMatches(reply); err == nil {
			t.Fatalf("ParseMatches(%q) error = nil, want error", reply)
		}
	}
}
