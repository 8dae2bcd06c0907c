package errors

import (
	// Go Internal Packages
	"fmt"
	"strings"
)

// ValidationErrors collects per-field problems and turns them into a single error.
type ValidationErrors struct {
	fields []fieldErr
}

type fieldErr struct {
	field string
	msg   string
}

func ValidationErrs() *ValidationErrors {
	return &ValidationErrors{}
}

func (v *ValidationErrors) Add(field, msg string) {
	v.fields = append(v.fields, fieldErr{field: field, msg: msg})
}

func (v *ValidationErrors) Len() int {
	return len(v.fields)
}

// Err returns nil when nothing was added.
func (v *ValidationErrors) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	parts := make([]string, len(v.fields))
	for i, f := range v.fields {
		parts[i] = fmt.Sprintf("%s %s", f.field, f.msg)
	}
	return E(Invalid, strings.Join(parts, "; "), nil)
}
