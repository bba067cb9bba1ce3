package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rendis/stationflow/pkg/schema"
)

// stationValidate is shared by all station checks.
var stationValidate *validator.Validate

func init() {
	stationValidate = validator.New()
	stationValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = stationValidate.RegisterValidation("destination", validateDestination)
}

func validateDestination(fl validator.FieldLevel) bool {
	return schema.Destination(fl.Field().String()).Valid()
}

// ValidateStation checks a station record before it is persisted.
func ValidateStation(st *schema.Station) error {
	if st == nil {
		return schema.NewError(schema.ErrCodeValidation, "station is nil")
	}
	err := stationValidate.Struct(st)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return schema.NewError(schema.ErrCodeValidation, err.Error()).WithStation(st.ID)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	msg := fields[0]
	if len(fields) > 1 {
		msg = fmt.Sprintf("validation failed with %d errors", len(fields))
	}
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithStation(st.ID).
		WithDetails(map[string]any{"fields": fields})
}
