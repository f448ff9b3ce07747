package attendance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tutorcenter/core"
)

var (
	statusTag  = "status"
	statusText = "status must be one of: present, absent"

	entityTypeTag  = "entitytype"
	entityTypeText = "type must be one of: tutor, student"
)

// InitValidators registers the attendance validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)

	_ = validate.RegisterValidation(entityTypeTag, entityTypeValidation)
	core.RegisterCustomTranslation(validate, translator, entityTypeTag, entityTypeText)
}

// Custom Validators

func statusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).Valid()
}

func entityTypeValidation(fl validator.FieldLevel) bool {
	return EntityType(fl.Field().String()).Valid()
}

func (mr *MarkRequest) Validate(validate *validator.Validate) error {
	mr.Clean()
	return validate.Struct(mr)
}

func (rq *ReportQuery) Validate(validate *validator.Validate) error {
	rq.Clean()
	return validate.Struct(rq)
}
