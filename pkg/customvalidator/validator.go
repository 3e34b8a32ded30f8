package customvalidator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"crf-system/pkg/constants"
)

var icNumberRe = regexp.MustCompile(`^\d{6}-?\d{2}-?\d{4}$`)

// RegisterCustomValidations регистрирует доменные правила в переданном валидаторе.
func RegisterCustomValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("crf_action", isApplicableAction); err != nil {
		return err
	}
	if err := v.RegisterValidation("ic_number", isICNumber); err != nil {
		return err
	}
	if err := v.RegisterValidation("not_blank", isNotBlank); err != nil {
		return err
	}
	return nil
}

func isApplicableAction(fl validator.FieldLevel) bool {
	return constants.IsApplicableAction(fl.Field().String())
}

// isICNumber - номер удостоверения личности вида 900101-14-5678 (дефисы необязательны).
func isICNumber(fl validator.FieldLevel) bool {
	return icNumberRe.MatchString(fl.Field().String())
}

func isNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
