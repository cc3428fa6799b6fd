package strategies

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wonny/zscreen/internal/strategyconfig"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// 오류 메시지에 설정 파일 키 이름을 쓴다
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
	})
}

// decodeParams builds the parameter struct of def: tag defaults first, then
// the configured values (unknown keys rejected), then validation.
func decodeParams(def Definition, raw map[string]float64, field string) (any, []strategyconfig.ValidationError) {
	p := def.newParams()
	if err := defaults.Set(p); err != nil {
		return nil, []strategyconfig.ValidationError{{Field: field + ".params", Message: err.Error()}}
	}

	if len(raw) > 0 {
		data, err := yaml.Marshal(raw)
		if err != nil {
			return nil, []strategyconfig.ValidationError{{Field: field + ".params", Message: err.Error()}}
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(p); err != nil {
			return nil, []strategyconfig.ValidationError{{Field: field + ".params", Message: err.Error()}}
		}
	}

	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, []strategyconfig.ValidationError{{Field: field + ".params", Message: err.Error()}}
		}
		out := make([]strategyconfig.ValidationError, 0, len(verrs))
		for _, e := range verrs {
			out = append(out, strategyconfig.ValidationError{
				Field:   fmt.Sprintf("%s.params.%s", field, e.Field()),
				Message: describe(e),
			})
		}
		return nil, out
	}

	return p, nil
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("must be %s %s (got %v)", e.Tag(), e.Param(), e.Value())
	case "gtfield", "ltfield":
		return fmt.Sprintf("must be %s %s (got %v)", e.Tag(), e.Param(), e.Value())
	default:
		return fmt.Sprintf("failed %s validation (got %v)", e.Tag(), e.Value())
	}
}

// DefaultParams returns def's parameters with tag defaults applied
func DefaultParams(def Definition) (any, error) {
	p, errs := decodeParams(def, nil, def.Name)
	if len(errs) > 0 {
		return nil, &strategyconfig.ConfigurationError{Errors: errs}
	}
	return p, nil
}
