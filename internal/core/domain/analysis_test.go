package domain

import (
	"encoding/json"
	"testing"
)

func TestAnalysisUnmarshalStructured(t *testing.T) {
	var a Analysis
	err := json.Unmarshal([]byte(`{"red_flags":["income mismatch"],"inconsistencies":["name spelling"]}`), &a)
	if err != nil {
		t.Fatalf("unmarshal structured: %v", err)
	}
	if a.Shape != AnalysisStructured {
		t.Fatalf("expected structured shape, got %s", a.Shape)
	}
	if len(a.RedFlags()) != 1 || a.RedFlags()[0] != "income mismatch" {
		t.Fatalf("unexpected red flags: %v", a.RedFlags())
	}
	if len(a.Inconsistencies()) != 1 {
		t.Fatalf("unexpected inconsistencies: %v", a.Inconsistencies())
	}
}

func TestAnalysisUnmarshalList(t *testing.T) {
	var a Analysis
	if err := json.Unmarshal([]byte(`["note one","note two"]`), &a); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if a.Shape != AnalysisList {
		t.Fatalf("expected list shape, got %s", a.Shape)
	}
	if len(a.Notes()) != 2 {
		t.Fatalf("unexpected notes: %v", a.Notes())
	}
	if len(a.Inconsistencies()) != 0 {
		t.Fatalf("list shape must have no inconsistencies")
	}
}

func TestAnalysisUnmarshalTextAndAbsent(t *testing.T) {
	var text Analysis
	if err := json.Unmarshal([]byte(`"looks clean"`), &text); err != nil {
		t.Fatalf("unmarshal text: %v", err)
	}
	if text.Shape != AnalysisText || len(text.Notes()) != 1 {
		t.Fatalf("unexpected text analysis: %+v", text)
	}

	var absent Analysis
	if err := json.Unmarshal([]byte(`null`), &absent); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if absent.Shape != AnalysisAbsent {
		t.Fatalf("expected absent shape, got %s", absent.Shape)
	}
	if len(absent.RedFlags()) != 0 || len(absent.Notes()) != 0 {
		t.Fatalf("absent analysis must be empty")
	}
}

func TestAnalysisMarshalRoundTripsShape(t *testing.T) {
	a := StructuredAnalysis([]string{"flag"}, nil)
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Analysis
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Shape != AnalysisStructured || len(back.RedFlags()) != 1 {
		t.Fatalf("round trip lost shape: %+v", back)
	}
}

func TestFilterKnownFieldsDropsUnknownNames(t *testing.T) {
	filtered := FilterKnownFields(map[string]string{
		"Applicant Name": "Jane Roe",
		"Gross Income":   "50000",
		"Shoe Size":      "9",
	})
	if len(filtered) != 2 {
		t.Fatalf("expected 2 fields after filtering, got %d: %v", len(filtered), filtered)
	}
	if _, ok := filtered["Shoe Size"]; ok {
		t.Fatalf("unknown field survived the filter")
	}
}

func TestNeedsVerificationThreshold(t *testing.T) {
	if (ExtractedField{Value: "x", Confidence: 0.75}).NeedsVerification() {
		t.Fatalf("0.75 must not need verification")
	}
	if !(ExtractedField{Value: "x", Confidence: 0.6}).NeedsVerification() {
		t.Fatalf("0.6 must need verification")
	}
}
