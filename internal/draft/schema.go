package draft

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeDate   FieldType = "date"
	TypeSelect FieldType = "select"
)

// SchemaField is an explicit form field defined by the template, beyond the
// inline editable blocks. Nil bounds mean unbounded.
type SchemaField struct {
	Key       string    `json:"key"`
	Label     string    `json:"label,omitempty"`
	Type      FieldType `json:"type"`
	Required  bool      `json:"required,omitempty"`
	MinLength *int      `json:"minLength,omitempty"`
	MaxLength *int      `json:"maxLength,omitempty"`
	Min       *float64  `json:"min,omitempty"`
	Max       *float64  `json:"max,omitempty"`
	Options   []string  `json:"options,omitempty"`
}

type Schema struct {
	TemplateVersionID string        `json:"templateVersionId,omitempty"`
	Fields            []SchemaField `json:"fields"`
}

func (s *Schema) Field(key string) (SchemaField, bool) {
	if s == nil {
		return SchemaField{}, false
	}
	for _, field := range s.Fields {
		if field.Key == key {
			return field, true
		}
	}
	return SchemaField{}, false
}

type FieldError struct {
	Key     string `json:"key"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

var validate = validator.New()

// Validate checks every schema field against the map and returns violations
// ordered by key. Keys outside the schema are not its concern.
func (s *Schema) Validate(fields Fields) []FieldError {
	if s == nil {
		return nil
	}
	problems := make([]FieldError, 0)
	for _, field := range s.Fields {
		value, ok := fields[field.Key]
		if !ok || value.Empty() {
			if field.Required {
				problems = append(problems, FieldError{Key: field.Key, Rule: "required", Message: "is required"})
			}
			continue
		}
		if problem, bad := field.check(value); bad {
			problems = append(problems, problem)
		}
	}
	sort.SliceStable(problems, func(i, j int) bool { return problems[i].Key < problems[j].Key })
	return problems
}

func (f SchemaField) check(value Value) (FieldError, bool) {
	switch f.Type {
	case TypeNumber:
		if value.Kind() != KindNumber {
			return FieldError{Key: f.Key, Rule: "type", Message: "must be a number"}, true
		}
		return f.run(value.Num(), f.numberTag())
	case TypeDate:
		if value.Kind() != KindString {
			return FieldError{Key: f.Key, Rule: "type", Message: "must be a date (YYYY-MM-DD)"}, true
		}
		return f.run(value.Str(), "datetime=2006-01-02")
	case TypeSelect:
		// Options may contain spaces, which validator's oneof cannot express.
		for _, option := range f.Options {
			if value.Text() == option {
				return FieldError{}, false
			}
		}
		return FieldError{Key: f.Key, Rule: "oneof", Message: "must be one of " + strings.Join(f.Options, ", ")}, true
	default:
		if value.Kind() != KindString {
			return FieldError{Key: f.Key, Rule: "type", Message: "must be text"}, true
		}
		return f.run(value.Str(), f.stringTag())
	}
}

func (f SchemaField) stringTag() string {
	tags := make([]string, 0, 2)
	if f.MinLength != nil {
		tags = append(tags, "min="+strconv.Itoa(*f.MinLength))
	}
	if f.MaxLength != nil {
		tags = append(tags, "max="+strconv.Itoa(*f.MaxLength))
	}
	return strings.Join(tags, ",")
}

func (f SchemaField) numberTag() string {
	tags := make([]string, 0, 2)
	if f.Min != nil {
		tags = append(tags, "gte="+strconv.FormatFloat(*f.Min, 'f', -1, 64))
	}
	if f.Max != nil {
		tags = append(tags, "lte="+strconv.FormatFloat(*f.Max, 'f', -1, 64))
	}
	return strings.Join(tags, ",")
}

func (f SchemaField) run(value any, tag string) (FieldError, bool) {
	if tag == "" {
		return FieldError{}, false
	}
	err := validate.Var(value, tag)
	if err == nil {
		return FieldError{}, false
	}
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		return FieldError{Key: f.Key, Rule: errs[0].Tag(), Message: describeRule(errs[0].Tag(), errs[0].Param())}, true
	}
	return FieldError{Key: f.Key, Rule: "invalid", Message: err.Error()}, true
}

func describeRule(tag, param string) string {
	switch tag {
	case "min":
		return "must be at least " + param + " characters"
	case "max":
		return "must be at most " + param + " characters"
	case "gte":
		return "must be at least " + param
	case "lte":
		return "must be at most " + param
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	default:
		return "failed on '" + tag + "'"
	}
}
