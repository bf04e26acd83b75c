package boamp

import (
	"encoding/json"
	"strings"
	"time"
)

// FeedResponse is the envelope returned by the open-data records endpoint.
type FeedResponse struct {
	TotalCount int      `json:"total_count"`
	Results    []Record `json:"results"`
}

// Record is one tender notice as returned by the BOAMP open-data API. Raw
// keeps the unmapped payload for audit storage on the listing row.
type Record struct {
	IDWeb             string          `json:"idweb"`
	ID                string          `json:"id"`
	Objet             string          `json:"objet"`
	NomAcheteur       string          `json:"nomacheteur"`
	Resume            string          `json:"resume"`
	DateLimiteReponse string          `json:"datelimitereponse"`
	DateParution      string          `json:"dateparution"`
	TypeMarche        string          `json:"typemarche"`
	CodeDepartement   string          `json:"code_departement"`
	Montant           *float64        `json:"montant"`
	URLAvis           string          `json:"url_avis"`
	Raw               json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the full record alongside the mapped fields.
func (r *Record) UnmarshalJSON(data []byte) error {
	type alias Record
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = Record(a)
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// ExternalRef derives the stable upsert key: the explicit idweb field when
// present, the feed's own record id otherwise.
func (r *Record) ExternalRef() string {
	if ref := strings.TrimSpace(r.IDWeb); ref != "" {
		return ref
	}
	return strings.TrimSpace(r.ID)
}

// ParseDate parses the date layouts the feed emits; nil when absent or
// unparseable.
func ParseDate(value string) *time.Time {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}
