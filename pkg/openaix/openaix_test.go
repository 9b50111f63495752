package openaix

import "testing"

func TestParseFactsPlain(t *testing.T) {
	t.Parallel()

	facts, err := parseFacts(`{"company":"Acme","birthday":"March 3"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if facts["company"] != "Acme" || facts["birthday"] != "March 3" {
		t.Fatalf("unexpected facts: %v", facts)
	}
}

func TestParseFactsCodeFence(t *testing.T) {
	t.Parallel()

	facts, err := parseFacts("```json\n{\"preferred_llms\":\"Claude\"}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if facts["preferred_llms"] != "Claude" {
		t.Fatalf("unexpected facts: %v", facts)
	}
}

func TestParseFactsDropsUnknownAndEmpty(t *testing.T) {
	t.Parallel()

	facts, err := parseFacts(`{"company":"Acme","favorite_color":"blue","address":"  "}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(facts) != 1 || facts["company"] != "Acme" {
		t.Fatalf("unexpected facts: %v", facts)
	}
}

func TestParseFactsEmptyObject(t *testing.T) {
	t.Parallel()

	facts, err := parseFacts("{}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(facts) != 0 {
		t.Fatalf("expected no facts, got %v", facts)
	}

	facts, err = parseFacts("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(facts) != 0 {
		t.Fatalf("expected no facts, got %v", facts)
	}
}

func TestParseFactsBadJSON(t *testing.T) {
	t.Parallel()

	if _, err := parseFacts("the user works at Acme"); err == nil {
		t.Fatal("expected a parse error")
	}
}
