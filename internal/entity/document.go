package entity

import (
	"time"

	"github.com/joseph-ayodele/tender-extractor/constants"
)

// Fields maps each fixed field name to its extracted value; nil means the
// value was not present in the document.
type Fields map[string]*string

// NewFields returns a Fields object holding every name with a null value.
func NewFields(names []string) Fields {
	f := make(Fields, len(names))
	for _, n := range names {
		f[n] = nil
	}
	return f
}

// Clone copies the map and its values.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		if v != nil {
			s := *v
			out[k] = &s
		} else {
			out[k] = nil
		}
	}
	return out
}

// Submittal is a document the bidder must submit, or a blank to be completed.
type Submittal struct {
	Item   string `json:"item"`
	Page   *int   `json:"page"`
	Reason string `json:"reason"`
}

// Document is a stored tender upload and its extraction results.
type Document struct {
	ID           string                   `json:"_id"`
	FileName     string                   `json:"pdfName"`
	Status       constants.DocumentStatus `json:"status"`
	Fields       Fields                   `json:"fields"`
	Submittals   []Submittal              `json:"submittals"`
	PageCount    int                      `json:"pageCount"`
	ErrorMessage string                   `json:"errorMessage,omitempty"`
	CreatedAt    time.Time                `json:"createdAt"`
	UpdatedAt    time.Time                `json:"updatedAt"`
}

func (d *Document) HasFields() bool {
	return d.Fields != nil
}

func (d *Document) HasSubmittals() bool {
	return len(d.Submittals) > 0
}

// DocumentSummary is one row of the history listing.
type DocumentSummary struct {
	ID        string                   `json:"_id"`
	FileName  string                   `json:"pdfName"`
	CreatedAt time.Time                `json:"createdAt"`
	Status    constants.DocumentStatus `json:"status"`
}

// DocumentUpdate is a partial update; nil members are left unchanged.
type DocumentUpdate struct {
	Status       *constants.DocumentStatus
	Fields       Fields
	Submittals   *[]Submittal
	PageCount    *int
	ErrorMessage *string
}

// WithStatus sets the target status.
func (u DocumentUpdate) WithStatus(s constants.DocumentStatus) DocumentUpdate {
	u.Status = &s
	return u
}

// WithSubmittals replaces the stored submittals (nil is stored as empty).
func (u DocumentUpdate) WithSubmittals(s []Submittal) DocumentUpdate {
	if s == nil {
		s = []Submittal{}
	}
	u.Submittals = &s
	return u
}

// WithError marks the update as a failure with msg.
func (u DocumentUpdate) WithError(msg string) DocumentUpdate {
	u.ErrorMessage = &msg
	return u.WithStatus(constants.StatusFailed)
}

// WithPageCount records the number of PDF pages.
func (u DocumentUpdate) WithPageCount(n int) DocumentUpdate {
	u.PageCount = &n
	return u
}

// Apply merges u into d. It does not check status transitions.
func (u DocumentUpdate) Apply(d *Document) {
	if u.Status != nil {
		d.Status = *u.Status
	}
	if u.Fields != nil {
		d.Fields = u.Fields.Clone()
	}
	if u.Submittals != nil {
		d.Submittals = append([]Submittal{}, (*u.Submittals)...)
	}
	if u.PageCount != nil {
		d.PageCount = *u.PageCount
	}
	if u.ErrorMessage != nil {
		d.ErrorMessage = *u.ErrorMessage
	}
}
