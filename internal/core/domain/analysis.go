package domain

import "encoding/json"

// AnalysisShape names the observed shapes of the inference "analysis" payload.
// The model sometimes returns the structured object it was asked for, sometimes
// a bare list of notes, sometimes a single string, and sometimes nothing.
type AnalysisShape string

const (
	AnalysisStructured AnalysisShape = "structured"
	AnalysisList       AnalysisShape = "list"
	AnalysisText       AnalysisShape = "text"
	AnalysisAbsent     AnalysisShape = "absent"
)

// Analysis is a tagged variant over the four shapes. Consumers must go through
// RedFlags/Inconsistencies/Notes rather than assuming one shape.
type Analysis struct {
	Shape AnalysisShape

	redFlags        []string
	inconsistencies []string
	notes           []string
	text            string
}

func StructuredAnalysis(redFlags, inconsistencies []string) Analysis {
	if redFlags == nil {
		redFlags = []string{}
	}
	if inconsistencies == nil {
		inconsistencies = []string{}
	}
	return Analysis{Shape: AnalysisStructured, redFlags: redFlags, inconsistencies: inconsistencies}
}

func ListAnalysis(notes []string) Analysis {
	if notes == nil {
		notes = []string{}
	}
	return Analysis{Shape: AnalysisList, notes: notes}
}

func TextAnalysis(text string) Analysis {
	return Analysis{Shape: AnalysisText, text: text}
}

func AbsentAnalysis() Analysis {
	return Analysis{Shape: AnalysisAbsent}
}

// RedFlags returns the ordered red flags for the structured shape, or the
// freeform notes/text for the degenerate shapes so nothing is silently lost.
func (a Analysis) RedFlags() []string {
	switch a.Shape {
	case AnalysisStructured:
		return a.redFlags
	case AnalysisList:
		return a.notes
	case AnalysisText:
		if a.text == "" {
			return []string{}
		}
		return []string{a.text}
	default:
		return []string{}
	}
}

func (a Analysis) Inconsistencies() []string {
	if a.Shape == AnalysisStructured {
		return a.inconsistencies
	}
	return []string{}
}

// Notes returns the freeform content when the model did not produce the
// structured object.
func (a Analysis) Notes() []string {
	switch a.Shape {
	case AnalysisList:
		return a.notes
	case AnalysisText:
		if a.text == "" {
			return []string{}
		}
		return []string{a.text}
	default:
		return []string{}
	}
}

type structuredAnalysisJSON struct {
	RedFlags        []string `json:"red_flags"`
	Inconsistencies []string `json:"inconsistencies"`
}

func (a *Analysis) UnmarshalJSON(data []byte) error {
	trimmed := trimJSONSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*a = AbsentAnalysis()
		return nil
	}

	switch trimmed[0] {
	case '{':
		var obj structuredAnalysisJSON
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		*a = StructuredAnalysis(obj.RedFlags, obj.Inconsistencies)
	case '[':
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*a = ListAnalysis(list)
	default:
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*a = TextAnalysis(text)
	}
	return nil
}

func (a Analysis) MarshalJSON() ([]byte, error) {
	switch a.Shape {
	case AnalysisStructured:
		return json.Marshal(structuredAnalysisJSON{
			RedFlags:        a.RedFlags(),
			Inconsistencies: a.Inconsistencies(),
		})
	case AnalysisList:
		return json.Marshal(a.notes)
	case AnalysisText:
		return json.Marshal(a.text)
	default:
		return []byte("null"), nil
	}
}

func trimJSONSpace(data []byte) []byte {
	start := 0
	for start < len(data) && isJSONSpace(data[start]) {
		start++
	}
	end := len(data)
	for end > start && isJSONSpace(data[end-1]) {
		end--
	}
	return data[start:end]
}

func isJSONSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
