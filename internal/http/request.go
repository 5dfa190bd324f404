package http

import (
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/example/hotel-frontdesk/internal/occupancy"
)

var validate = newValidator()

// newValidator reports fields by their json or form names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return field.Name
	})
	return v
}

// bindJSON decodes the body into req and runs the struct validation tags.
// A decode failure returns errBadRequestBody.
func bindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return errBadRequestBody
	}
	return validate.Struct(req)
}

func parseDay(value string) (time.Time, error) {
	day, err := occupancy.ParseDay(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, errInvalidDay
	}
	return day, nil
}

func parseOptionalDay(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	day, err := parseDay(*value)
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func formatOptionalDay(day time.Time) string {
	if day.IsZero() {
		return ""
	}
	return occupancy.FormatDay(day)
}

func formatDayPtr(day *time.Time) *string {
	if day == nil {
		return nil
	}
	s := occupancy.FormatDay(*day)
	return &s
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
