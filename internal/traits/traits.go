// Package traits maps visitor contact fields into the SDK trait vocabulary.
//
// DESIGN: Every tracker command carries two fragments:
//   - customAttributes: CustomerEmail / CustomerPhone for the fields that are set,
//     merged over the section's own attributes (omitted when empty)
//   - traitsMapper:     fixed table binding SDK traits back to those field names
//
// The phone maps to four trait names because the contact form does not ask for a
// phone sub-type.
package traits

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/compresr/journey-gateway/internal/contact"
	"github.com/compresr/journey-gateway/internal/journey"
)

// Source field names, shared with the chat widget's hidden fields.
const (
	FieldEmail = "CustomerEmail"
	FieldPhone = "CustomerPhone"
)

// TraitBinding binds an SDK trait to a custom attribute field.
type TraitBinding struct {
	FieldName string `json:"fieldName"`
	TraitName string `json:"traitName"`
}

// Bindings is the fixed traitsMapper table.
var Bindings = []TraitBinding{
	{FieldName: FieldEmail, TraitName: "email"},
	{FieldName: FieldPhone, TraitName: "workPhone"},
	{FieldName: FieldPhone, TraitName: "cellPhone"},
	{FieldName: FieldPhone, TraitName: "otherPhone"},
	{FieldName: FieldPhone, TraitName: "homePhone"},
}

// Fragment is the attribute/trait part of one command payload.
type Fragment struct {
	CustomAttributes []journey.CustomAttribute
	TraitsMapper     []TraitBinding
}

// Map builds the fragment for one section or tracked item.
func Map(c contact.Contact, local []journey.CustomAttribute) Fragment {
	attrs := make([]journey.CustomAttribute, 0, len(local)+2)
	for _, a := range local {
		if a.Name != "" {
			attrs = upsert(attrs, a)
		}
	}
	if c.Email != "" {
		attrs = upsert(attrs, journey.CustomAttribute{Name: FieldEmail, Value: c.Email})
	}
	if c.Phone != "" {
		attrs = upsert(attrs, journey.CustomAttribute{Name: FieldPhone, Value: c.Phone})
	}
	if len(attrs) == 0 {
		attrs = nil
	}

	mapper := make([]TraitBinding, len(Bindings))
	copy(mapper, Bindings)
	return Fragment{CustomAttributes: attrs, TraitsMapper: mapper}
}

// HasCustomAttributes reports whether the customAttributes key will be emitted.
func (f Fragment) HasCustomAttributes() bool {
	return len(f.CustomAttributes) > 0
}

// Apply appends customAttributes (when present) and traitsMapper to a JSON
// object. Existing keys keep their position.
func (f Fragment) Apply(payload []byte) ([]byte, error) {
	var err error
	if f.HasCustomAttributes() {
		obj := []byte(`{}`)
		for _, a := range f.CustomAttributes {
			if obj, err = sjson.SetBytes(obj, gjson.Escape(a.Name), a.Value); err != nil {
				return nil, fmt.Errorf("custom attribute %q: %w", a.Name, err)
			}
		}
		if payload, err = sjson.SetRawBytes(payload, "customAttributes", obj); err != nil {
			return nil, fmt.Errorf("customAttributes: %w", err)
		}
	}
	if payload, err = sjson.SetBytes(payload, "traitsMapper", f.TraitsMapper); err != nil {
		return nil, fmt.Errorf("traitsMapper: %w", err)
	}
	return payload, nil
}

func upsert(attrs []journey.CustomAttribute, a journey.CustomAttribute) []journey.CustomAttribute {
	for i := range attrs {
		if attrs[i].Name == a.Name {
			attrs[i].Value = a.Value
			return attrs
		}
	}
	return append(attrs, a)
}
