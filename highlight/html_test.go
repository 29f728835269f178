package highlight

import (
	"strings"
	"testing"

	"github.com/Areen-09/legal-doc-demystifier/model"
)

func textTerms() []model.KeyTerm {
	return []model.KeyTerm{
		{Term: "Security Deposit", Risk: model.RiskHigh},
		{Term: "tenant", Risk: model.RiskLow},
	}
}

func TestApplyHTML(t *testing.T) {
	src := `<h1>Lease</h1><p>The Tenant pays a <b>security deposit</b> on signing.</p><script>var tenant = 1;</script>`

	out, err := ApplyHTML(src, textTerms())
	if err != nil {
		t.Fatalf("ApplyHTML failed: %v", err)
	}

	wantMarks := []string{
		`<mark data-highlight="" class="highlight-low" data-term="tenant" data-risk="low">Tenant</mark>`,
		`<b><mark data-highlight="" class="highlight-high" data-term="Security Deposit" data-risk="high">security deposit</mark></b>`,
	}
	for _, want := range wantMarks {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %s, got %s", want, out)
		}
	}
	if !strings.Contains(out, "<script>var tenant = 1;</script>") {
		t.Errorf("Expected script untouched, got %s", out)
	}
	if strings.Count(out, "<mark") != 2 {
		t.Errorf("Expected 2 marks, got %s", out)
	}
}

func TestApplyHTMLIdempotent(t *testing.T) {
	src := `<p>Tenant and TENANT owe the Security Deposit &amp; fees.</p><ul><li>tenant</li></ul>`

	once, err := ApplyHTML(src, textTerms())
	if err != nil {
		t.Fatalf("ApplyHTML failed: %v", err)
	}
	twice, err := ApplyHTML(once, textTerms())
	if err != nil {
		t.Fatalf("ApplyHTML failed: %v", err)
	}
	if once != twice {
		t.Errorf("Expected idempotent output\nonce:  %s\ntwice: %s", once, twice)
	}
	if strings.Contains(twice, "<mark data-highlight=\"\" class=\"highlight-low\" data-term=\"tenant\" data-risk=\"low\"><mark") {
		t.Error("Expected no nested marks")
	}
}

func TestApplyHTMLClearsStaleMarks(t *testing.T) {
	src := `<p>The Tenant pays the Security Deposit.</p>`
	marked, _ := ApplyHTML(src, textTerms())

	// term set shrinks: the deposit mark must go away
	out, err := ApplyHTML(marked, []model.KeyTerm{{Term: "tenant", Risk: model.RiskLow}})
	if err != nil {
		t.Fatalf("ApplyHTML failed: %v", err)
	}
	if strings.Contains(out, "highlight-high") {
		t.Errorf("Expected stale mark removed, got %s", out)
	}
	if !strings.Contains(out, "the Security Deposit.</p>") {
		t.Errorf("Expected deposit text merged back, got %s", out)
	}

	plain, _ := ApplyHTML(marked, nil)
	if plain != src {
		t.Errorf("Expected original html with no terms, got %s", plain)
	}
}

func TestApplyHTMLKeepsForeignMarks(t *testing.T) {
	src := `<p><mark>editor note</mark> tenant</p>`
	out, err := ApplyHTML(src, textTerms())
	if err != nil {
		t.Fatalf("ApplyHTML failed: %v", err)
	}
	if !strings.Contains(out, "<mark>editor note</mark>") {
		t.Errorf("Expected non-highlight mark preserved, got %s", out)
	}
}

func TestApplyHTMLSkipsCoordinateTerms(t *testing.T) {
	src := `<p>Tenant</p>`
	terms := []model.KeyTerm{{Term: "tenant", Risk: model.RiskLow, Locations: []model.Location{{Page: 1, Coords: []float64{0, 0, 1, 1}}}}}

	out, _ := ApplyHTML(src, terms)
	if out != src {
		t.Errorf("Expected no marks for coordinate terms, got %s", out)
	}
}
