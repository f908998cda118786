package models

// Field identifies a single piece of caller data the agent may collect
// during a booking conversation.
type Field string

const (
	FieldName      Field = "name"
	FieldPhone     Field = "phone"
	FieldEmail     Field = "email"
	FieldInsurance Field = "insurance"
	FieldChildName Field = "child_name"
	FieldBirthDate Field = "birth_date"
	FieldReason    Field = "reason"
)

// Child is one patient in a (possibly multi-child) booking scenario.
type Child struct {
	Name      string `yaml:"name" json:"name"`
	BirthDate string `yaml:"birth_date" json:"birth_date"`
	IsNew     bool   `yaml:"is_new_patient,omitempty" json:"is_new_patient,omitempty"`
}

// Persona is the simulated caller's fact inventory. It is created once per
// test execution and read-only thereafter.
type Persona struct {
	Name              string  `yaml:"name" json:"name"`
	Phone             string  `yaml:"phone" json:"phone"`
	Email             string  `yaml:"email" json:"email"`
	InsuranceProvider string  `yaml:"insurance_provider" json:"insurance_provider"`
	InsuranceID       string  `yaml:"insurance_id,omitempty" json:"insurance_id,omitempty"`
	Reason            string  `yaml:"reason,omitempty" json:"reason,omitempty"`
	Children          []Child `yaml:"children,omitempty" json:"children,omitempty"`
}

// ValueFor returns the persona's value for a collectable field. The child
// index selects which child's data is used for per-child fields; an index
// out of range falls back to the first child.
func (p *Persona) ValueFor(field Field, childIndex int) string {
	switch field {
	case FieldName:
		return p.Name
	case FieldPhone:
		return p.Phone
	case FieldEmail:
		return p.Email
	case FieldInsurance:
		return p.InsuranceProvider
	case FieldReason:
		return p.Reason
	case FieldChildName:
		if c := p.child(childIndex); c != nil {
			return c.Name
		}
	case FieldBirthDate:
		if c := p.child(childIndex); c != nil {
			return c.BirthDate
		}
	}
	return ""
}

func (p *Persona) child(idx int) *Child {
	if len(p.Children) == 0 {
		return nil
	}
	if idx < 0 || idx >= len(p.Children) {
		idx = 0
	}
	return &p.Children[idx]
}

// DynamicPersona is a persona template in which some fields are marked as
// generated-on-resolve. Resolving it from a seed yields a ResolvedPersona.
// A DynamicPersona with no Generate entries behaves as a static persona.
type DynamicPersona struct {
	Base     Persona  `yaml:"base" json:"base"`
	Generate []string `yaml:"generate,omitempty" json:"generate,omitempty"`
}

// IsDynamic reports whether any field is generated on resolve.
func (d *DynamicPersona) IsDynamic() bool {
	return len(d.Generate) > 0
}

// ResolutionMeta records how a dynamic persona was resolved so the run can
// be reproduced.
type ResolutionMeta struct {
	Seed            int64    `json:"seed"`
	GeneratedFields []string `json:"generated_fields"`
}

// ResolvedPersona is the concrete persona used for one test execution plus
// its provenance.
type ResolvedPersona struct {
	Persona Persona        `json:"persona"`
	Meta    ResolutionMeta `json:"meta"`
}
