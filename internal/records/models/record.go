// Package models holds the bibliographic record document as ingested from
// feeders. Only the identifier-bearing and date-bearing fields matter to this
// service; everything else rides along untouched through the JSON round-trip.
package models

import "encoding/json"

// Record is a versioned bibliographic metadata document. Fields the service
// does not model (abstracts, references, ...) are kept verbatim in unknown and
// restored on marshal, so records survive decode, merge and commit unclipped.
type Record struct {
	Schema             string             `json:"$schema,omitempty"`
	ControlNumber      int64              `json:"control_number,omitempty"`
	Titles             []Title            `json:"titles,omitempty"`
	DocumentType       []string           `json:"document_type,omitempty"`
	Collections        []string           `json:"_collections,omitempty"`
	Authors            []Author           `json:"authors,omitempty"`
	Collaborations     []Collaboration    `json:"collaborations,omitempty"`
	CorporateAuthor    []string           `json:"corporate_author,omitempty"`
	ArxivEprints       []ArxivEprint      `json:"arxiv_eprints,omitempty"`
	ISBNs              []ISBN             `json:"isbns,omitempty"`
	Texkeys            []string           `json:"texkeys,omitempty"`
	PreprintDate       string             `json:"preprint_date,omitempty"`
	ThesisInfo         *ThesisInfo        `json:"thesis_info,omitempty"`
	PublicationInfo    []PublicationInfo  `json:"publication_info,omitempty"`
	LegacyCreationDate string             `json:"legacy_creation_date,omitempty"`
	Imprints           []Imprint          `json:"imprints,omitempty"`
	Created            string             `json:"created,omitempty"`
	AcquisitionSource  *AcquisitionSource `json:"acquisition_source,omitempty"`

	unknown map[string]json.RawMessage
}

// recordAlias keeps the standard struct codec reachable from the custom
// JSON methods.
type recordAlias Record

var knownRecordKeys = []string{
	"$schema", "control_number", "titles", "document_type", "_collections",
	"authors", "collaborations", "corporate_author", "arxiv_eprints", "isbns",
	"texkeys", "preprint_date", "thesis_info", "publication_info",
	"legacy_creation_date", "imprints", "created", "acquisition_source",
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var alias recordAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	unknown, err := splitUnknown(data, knownRecordKeys)
	if err != nil {
		return err
	}
	*r = Record(alias)
	r.unknown = unknown
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(recordAlias(r))
	if err != nil {
		return nil, err
	}
	return mergeUnknown(raw, r.unknown)
}

// splitUnknown returns the members of data not claimed by known, or nil when
// every member is modeled.
func splitUnknown(data []byte, known []string) (map[string]json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(doc, k)
	}
	if len(doc) == 0 {
		return nil, nil
	}
	return doc, nil
}

// mergeUnknown folds preserved members back into a marshaled object. Modeled
// fields win on key clashes.
func mergeUnknown(raw []byte, unknown map[string]json.RawMessage) ([]byte, error) {
	if len(unknown) == 0 {
		return raw, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	for k, v := range unknown {
		if _, ok := doc[k]; !ok {
			doc[k] = v
		}
	}
	return json.Marshal(doc)
}

// The list element types only model the member this service reads, but carry
// the rest of each element through the round-trip the same way Record does.

type Title struct {
	Title string `json:"title"`

	unknown map[string]json.RawMessage
}

type titleAlias Title

func (t *Title) UnmarshalJSON(data []byte) error {
	var alias titleAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	unknown, err := splitUnknown(data, []string{"title"})
	if err != nil {
		return err
	}
	*t = Title(alias)
	t.unknown = unknown
	return nil
}

func (t Title) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(titleAlias(t))
	if err != nil {
		return nil, err
	}
	return mergeUnknown(raw, t.unknown)
}

type Author struct {
	FullName string `json:"full_name"`

	unknown map[string]json.RawMessage
}

type authorAlias Author

func (a *Author) UnmarshalJSON(data []byte) error {
	var alias authorAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	unknown, err := splitUnknown(data, []string{"full_name"})
	if err != nil {
		return err
	}
	*a = Author(alias)
	a.unknown = unknown
	return nil
}

func (a Author) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(authorAlias(a))
	if err != nil {
		return nil, err
	}
	return mergeUnknown(raw, a.unknown)
}

type Collaboration struct {
	Value string `json:"value"`
}

type ArxivEprint struct {
	Value string `json:"value"`

	unknown map[string]json.RawMessage
}

type arxivEprintAlias ArxivEprint

func (e *ArxivEprint) UnmarshalJSON(data []byte) error {
	var alias arxivEprintAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	unknown, err := splitUnknown(data, []string{"value"})
	if err != nil {
		return err
	}
	*e = ArxivEprint(alias)
	e.unknown = unknown
	return nil
}

func (e ArxivEprint) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(arxivEprintAlias(e))
	if err != nil {
		return nil, err
	}
	return mergeUnknown(raw, e.unknown)
}

type ISBN struct {
	Value string `json:"value"`

	unknown map[string]json.RawMessage
}

type isbnAlias ISBN

func (i *ISBN) UnmarshalJSON(data []byte) error {
	var alias isbnAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	unknown, err := splitUnknown(data, []string{"value"})
	if err != nil {
		return err
	}
	*i = ISBN(alias)
	i.unknown = unknown
	return nil
}

func (i ISBN) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(isbnAlias(i))
	if err != nil {
		return nil, err
	}
	return mergeUnknown(raw, i.unknown)
}

type ThesisInfo struct {
	Date        string `json:"date,omitempty"`
	DefenseDate string `json:"defense_date,omitempty"`
}

type PublicationInfo struct {
	Year int `json:"year,omitempty"`
}

type Imprint struct {
	Date string `json:"date,omitempty"`
}

type AcquisitionSource struct {
	Source string `json:"source,omitempty"`

	unknown map[string]json.RawMessage
}

type acquisitionSourceAlias AcquisitionSource

func (s *AcquisitionSource) UnmarshalJSON(data []byte) error {
	var alias acquisitionSourceAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	unknown, err := splitUnknown(data, []string{"source"})
	if err != nil {
		return err
	}
	*s = AcquisitionSource(alias)
	s.unknown = unknown
	return nil
}

func (s AcquisitionSource) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(acquisitionSourceAlias(s))
	if err != nil {
		return nil, err
	}
	return mergeUnknown(raw, s.unknown)
}

// EprintValues returns the arXiv eprint identifier values in document order.
func (r *Record) EprintValues() []string {
	values := make([]string, 0, len(r.ArxivEprints))
	for _, e := range r.ArxivEprints {
		if e.Value != "" {
			values = append(values, e.Value)
		}
	}
	return values
}

// ISBNValues returns the ISBN identifier values in document order.
func (r *Record) ISBNValues() []string {
	values := make([]string, 0, len(r.ISBNs))
	for _, i := range r.ISBNs {
		if i.Value != "" {
			values = append(values, i.Value)
		}
	}
	return values
}

// Source returns the feeder that produced this record version, empty when
// unknown.
func (r *Record) Source() string {
	if r.AcquisitionSource == nil {
		return ""
	}
	return r.AcquisitionSource.Source
}

// ToMap round-trips the record through JSON into a generic document, the form
// merge conflict detection works on.
func (r *Record) ToMap() (map[string]any, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Clone deep-copies the record via JSON, so callers can mutate drafts without
// sharing slices.
func (r *Record) Clone() (*Record, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var out Record
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
