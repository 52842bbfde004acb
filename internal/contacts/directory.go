package contacts

import "strings"

// Directory provides lookups over a parsed, immutable list of records.
type Directory struct {
	records []ContactRecord
}

// NewDirectory wraps records. The slice is not copied and must not be modified afterward.
func NewDirectory(records []ContactRecord) *Directory {
	return &Directory{records: records}
}

// Records returns the underlying records in parse order.
func (d *Directory) Records() []ContactRecord {
	return d.records
}

// Len returns the number of records.
func (d *Directory) Len() int {
	return len(d.records)
}

// LookupByEmail finds the first record whose email matches email, ignoring case and surrounding
// whitespace.
func (d *Directory) LookupByEmail(email string) (*ContactRecord, bool) {
	want := strings.ToLower(strings.TrimSpace(email))
	if want == "" {
		return nil, false
	}
	for i := range d.records {
		if strings.ToLower(strings.TrimSpace(d.records[i].Email)) == want {
			return &d.records[i], true
		}
	}
	return nil, false
}

// Emails returns every non-empty email in record order, duplicates included.
func (d *Directory) Emails() []string {
	emails := make([]string, 0, len(d.records))
	for _, r := range d.records {
		if r.Email != "" {
			emails = append(emails, r.Email)
		}
	}
	return emails
}

// Unique returns the first record for each distinct email, in record order. Records without an
// email are dropped.
func (d *Directory) Unique() []ContactRecord {
	seen := make(map[string]struct{}, len(d.records))
	var out []ContactRecord
	for _, r := range d.records {
		key := strings.ToLower(strings.TrimSpace(r.Email))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
