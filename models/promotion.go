package models

import "strings"

// Field names a promotion attribute that the inference service produces a
// selector for.
type Field string

const (
	FieldPaymentMethod Field = "medioPago"
	FieldTitle         Field = "titulo"
	FieldDescription   Field = "descripcion"
	FieldDate          Field = "fecha"
	FieldConditions    Field = "condiciones"
)

// AllFields lists every promotion field in a stable order.
var AllFields = []Field{
	FieldPaymentMethod,
	FieldTitle,
	FieldDescription,
	FieldDate,
	FieldConditions,
}

// fieldAliases maps the English field names some models answer with to the
// canonical keys.
var fieldAliases = map[string]Field{
	"paymentmethod": FieldPaymentMethod,
	"title":         FieldTitle,
	"description":   FieldDescription,
	"date":          FieldDate,
	"conditions":    FieldConditions,
}

// ParseField resolves a canonical or English field name, case-insensitively.
func ParseField(name string) (Field, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, f := range AllFields {
		if strings.ToLower(string(f)) == lower {
			return f, true
		}
	}
	f, ok := fieldAliases[lower]
	return f, ok
}

// FieldSelectors holds one CSS selector per promotion field. Being a struct,
// it always carries all five fields; an empty string matches nothing.
type FieldSelectors struct {
	PaymentMethod string `json:"medioPago"`
	Title         string `json:"titulo"`
	Description   string `json:"descripcion"`
	Date          string `json:"fecha"`
	Conditions    string `json:"condiciones"`
}

// Get returns the selector for f.
func (s FieldSelectors) Get(f Field) string {
	switch f {
	case FieldPaymentMethod:
		return s.PaymentMethod
	case FieldTitle:
		return s.Title
	case FieldDescription:
		return s.Description
	case FieldDate:
		return s.Date
	case FieldConditions:
		return s.Conditions
	}
	return ""
}

// Set assigns the selector for f. Unknown fields are ignored.
func (s *FieldSelectors) Set(f Field, selector string) {
	switch f {
	case FieldPaymentMethod:
		s.PaymentMethod = selector
	case FieldTitle:
		s.Title = selector
	case FieldDescription:
		s.Description = selector
	case FieldDate:
		s.Date = selector
	case FieldConditions:
		s.Conditions = selector
	}
}

// IsEmpty reports whether no field has a selector.
func (s FieldSelectors) IsEmpty() bool {
	for _, f := range AllFields {
		if s.Get(f) != "" {
			return false
		}
	}
	return true
}

// Promotion is one extracted promotion record.
type Promotion struct {
	PaymentMethod string `json:"medioPago"`
	Title         string `json:"titulo"`
	Description   string `json:"descripcion"`
	Date          string `json:"fecha"`
	Conditions    string `json:"condiciones"`
	URL           string `json:"url"`
}

// Valid reports whether the record carries a title or a description.
func (p Promotion) Valid() bool {
	return p.Title != "" || p.Description != ""
}
