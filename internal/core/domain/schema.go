package domain

// FieldSchema is the single source of truth coupling extraction categories to
// the ledger's persisted field vocabulary. The extraction-instruction builder
// and the verification write filter both read from here so the two can never
// drift independently.
var FieldSchema = map[DocumentType][]string{
	TypePayslip:      {"Applicant Name", "Gross Income", "Net Pay", "Total Taxes", "Pay Period End Date"},
	TypeTaxForm:      {"Applicant Name", "Total Income", "Taxes Paid", "Assessment Year"},
	TypePANCard:      {"Name", "Father's Name", "Date of Birth", "PAN Number"},
	TypeIdentityCard: {"Name", "Date of Birth", "Address"},
}

// FieldsFor returns the required field list for a category. TypeOther has no
// fixed list; extraction is best-effort for it.
func FieldsFor(t DocumentType) []string {
	return FieldSchema[t]
}

// KnownFieldNames is the union vocabulary across all categories, in a stable
// order. This is the whitelist the ledger applies on writes and the field set
// the reporting aggregator iterates.
func KnownFieldNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range []DocumentType{TypePayslip, TypeTaxForm, TypePANCard, TypeIdentityCard} {
		for _, name := range FieldSchema[t] {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// FilterKnownFields drops entries whose names are outside the fixed vocabulary.
// Unknown names from either AI or human input are silently discarded, never
// persisted.
func FilterKnownFields(fields map[string]string) map[string]string {
	known := make(map[string]bool)
	for _, name := range KnownFieldNames() {
		known[name] = true
	}
	out := make(map[string]string, len(fields))
	for name, value := range fields {
		if known[name] {
			out[name] = value
		}
	}
	return out
}
