package profile

import (
	"encoding/json"
	"testing"
)

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      Request
		wantErr bool
	}{
		{name: "ok", in: Request{Name: "Jane Doe"}},
		{name: "empty", in: Request{}, wantErr: true},
		{name: "whitespace", in: Request{Name: " \t\n"}, wantErr: true},
		{name: "role_only", in: Request{Role: "CEO"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate()=%v wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestRequestSubject(t *testing.T) {
	got := Request{Name: " Jane Doe "}.Subject()
	if got != "Jane Doe, unknown role, unknown org" {
		t.Fatalf("unexpected subject %q", got)
	}
	got = Request{Name: "Jane Doe", Role: "CTO", Organisation: "Acme"}.Subject()
	if got != "Jane Doe, CTO, Acme" {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestParseConfidence(t *testing.T) {
	for in, want := range map[string]Confidence{
		"high":    ConfidenceHigh,
		" Medium": ConfidenceMedium,
		"LOW":     ConfidenceLow,
		"":        ConfidenceLow,
		"certain": ConfidenceLow,
	} {
		if got := ParseConfidence(in); got != want {
			t.Fatalf("ParseConfidence(%q)=%q want %q", in, got, want)
		}
	}
}

func TestNormalize_SequencesNeverNull(t *testing.T) {
	var r Record
	if err := json.Unmarshal([]byte(`{"name":"Jane","career":[{"phase":"Early","items":[{"role":"Analyst"}]}],"conversationStarters":[{"category":"x"}],"sources":null}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	r.Normalize()

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(b, &generic); err != nil {
		t.Fatalf("unmarshal generic: %v", err)
	}
	for _, key := range []string{"education", "honorsAwards", "licensesCerts", "career", "conversationStarters", "engagementOpportunities", "events", "readingMaterials", "sources"} {
		if _, ok := generic[key].([]any); !ok {
			t.Fatalf("%s: expected array, got %#v", key, generic[key])
		}
	}
	item := r.Career[0].Items[0]
	if item.SubItems == nil {
		t.Fatalf("expected non-nil subItems")
	}
	if r.ConversationStarters[0].Starters == nil {
		t.Fatalf("expected non-nil starters")
	}
	if r.SphereOfInfluence.Peers == nil || r.SphereOfInfluence.DirectReports == nil {
		t.Fatalf("expected non-nil sphere sequences")
	}
	if r.Confidence != ConfidenceLow {
		t.Fatalf("expected default confidence low, got %q", r.Confidence)
	}
}

func TestDedupePreserveOrder(t *testing.T) {
	got := DedupePreserveOrder([]string{"b", " a", "", "b", "a ", "c"})
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	if out := DedupePreserveOrder(nil); out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", out)
	}
}
