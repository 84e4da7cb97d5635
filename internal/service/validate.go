package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"dashboard/internal/models"
)

var (
	ErrNotReady         = errors.New("dataset not loaded")
	ErrInvalidSelection = errors.New("invalid selection")
)

// SelectionError lists everything wrong with a selection.
type SelectionError struct {
	Problems []string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidSelection, strings.Join(e.Problems, "; "))
}

func (e *SelectionError) Is(target error) bool { return target == ErrInvalidSelection }

func newValidator() *validator.Validate {
	v := validator.New()
	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkSelection validates field rules, then that the range lies inside bounds.
func checkSelection(v *validator.Validate, sel models.FilterSelection, bounds models.YearRange, empty bool) error {
	var problems []string
	if err := v.Struct(sel); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}
	if !empty && len(problems) == 0 {
		if sel.Years.Min < bounds.Min || sel.Years.Max > bounds.Max {
			problems = append(problems, fmt.Sprintf("years %d-%d outside dataset range %d-%d",
				sel.Years.Min, sel.Years.Max, bounds.Min, bounds.Max))
		}
	}
	if len(problems) > 0 {
		return &SelectionError{Problems: problems}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "ltefield":
		return fmt.Sprintf("%s must not be after %s", fe.Namespace(), fe.Param())
	case "required":
		return fmt.Sprintf("%s must not be empty", fe.Namespace())
	}
	return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
}

// dedupe drops repeated identifiers, keeping the first occurrence.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
