package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/OpenBPLS/bpls/internal/application/model"
)

// Wizard steps, in the order an applicant walks through them.
const (
	StepType                = 1
	StepBusinessInformation = 2
	StepOwnerInformation    = 3
	StepBusinessOperations  = 4
	StepDeclaration         = 5

	TotalSteps = StepDeclaration
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their human label so messages can be shown to applicants as is.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if label := fld.Tag.Get("label"); label != "" {
			return label
		}
		return fld.Name
	})
	return v
}

// ValidateBusinessInformation checks the step 2 checklist.
func ValidateBusinessInformation(info *model.BusinessInformation) error {
	if info == nil {
		info = &model.BusinessInformation{}
	}
	return check(StepBusinessInformation, "business information", trimmed(*info))
}

// ValidateOwnerInformation checks the step 3 checklist.
func ValidateOwnerInformation(owner *model.OwnerInformation) error {
	if owner == nil {
		owner = &model.OwnerInformation{}
	}
	return check(StepOwnerInformation, "owner information", trimmed(*owner))
}

// ValidateBusinessLines requires at least one line of business.
func ValidateBusinessLines(lines []model.BusinessLine) error {
	if len(lines) == 0 {
		return &MissingFieldsError{
			Step:   StepBusinessOperations,
			Entity: "business lines",
			Fields: []string{"at least one business line"},
		}
	}
	return nil
}

// ValidateBusinessLine checks a single line before it is added or updated.
func ValidateBusinessLine(line model.BusinessLine) error {
	return check(StepBusinessOperations, "business line", trimmed(line))
}

// ValidateDeclaration requires a signature and the agreement flag.
func ValidateDeclaration(decl *model.Declaration) error {
	if decl == nil {
		decl = &model.Declaration{}
	}
	return check(StepDeclaration, "declaration", trimmed(*decl))
}

// ValidateApplicationType checks the step 1 selection.
func ValidateApplicationType(t model.ApplicationType) error {
	if !t.Valid() {
		return &MissingFieldsError{Step: StepType, Entity: "application", Fields: []string{"application type"}}
	}
	return nil
}

// ValidateStep runs the checklist bound to step against the aggregate.
// Steps without a checklist always pass.
func ValidateStep(step int, agg *model.ApplicationAggregate) error {
	if agg == nil {
		return fmt.Errorf("application aggregate is nil")
	}
	switch step {
	case StepType:
		return ValidateApplicationType(agg.Application.Type)
	case StepBusinessInformation:
		return ValidateBusinessInformation(agg.BusinessInformation)
	case StepOwnerInformation:
		return ValidateOwnerInformation(agg.OwnerInformation)
	case StepBusinessOperations:
		return ValidateBusinessLines(agg.BusinessLines)
	case StepDeclaration:
		return ValidateDeclaration(agg.Declaration)
	default:
		return fmt.Errorf("unknown wizard step %d", step)
	}
}

func check(step int, entity string, value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate %s: %w", entity, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &MissingFieldsError{Step: step, Entity: entity, Fields: fields}
}

// trimmed returns a copy of v with every exported string field trimmed,
// so whitespace-only input counts as empty.
func trimmed[T any](v T) T {
	rv := reflect.ValueOf(&v).Elem()
	trimStrings(rv)
	return v
}

func trimStrings(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		if !field.CanSet() {
			continue
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(strings.TrimSpace(field.String()))
		case reflect.Struct:
			if rv.Type().Field(i).Anonymous {
				trimStrings(field)
			}
		}
	}
}
