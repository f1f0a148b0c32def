package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/teamsync/backend/internal/models"
	"github.com/teamsync/backend/pkg/response"
)

var registerOnce sync.Once

// RegisterValidators adds the domain binding tags to gin's validator.
// Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, key := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return ""
		})
		_ = v.RegisterValidation("project_status", func(fl validator.FieldLevel) bool {
			return models.IsValidProjectStatus(fl.Field().String())
		})
		_ = v.RegisterValidation("membership_decision", func(fl validator.FieldLevel) bool {
			return models.IsDecision(fl.Field().String())
		})
	})
}

// bindError converts a gin binding failure to a 400 with per-field messages.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldKey(fe)] = fieldMessage(fe)
		}
		return response.NewValidation(fields)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return response.NewBadRequest("malformed JSON body")
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return response.NewFieldError(typeErr.Field, fmt.Sprintf("must be a %s", typeErr.Type))
	}
	return response.NewBadRequest(err.Error())
}

// fieldKey drops Go type names from the namespace, so
// "CreateProjectRequest.roles[0].number_required" becomes "roles[0].number_required"
// and embedded structs such as Pagination disappear.
func fieldKey(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	for len(parts) > 1 && parts[0] != "" && unicode.IsUpper(rune(parts[0][0])) {
		parts = parts[1:]
	}
	return strings.Join(parts, ".")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "project_status":
		return fmt.Sprintf("must be one of %s", strings.Join(models.ProjectStatuses(), ", "))
	case "membership_decision":
		return "must be approved or rejected"
	case "oneof":
		return fmt.Sprintf("must be one of %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return fmt.Sprintf("must be a date in %s format", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		response.Error(c, bindError(err))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		response.Error(c, bindError(err))
		return false
	}
	return true
}

// paramID reads a positive numeric path parameter.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return uint(id), true
}
