package validator

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

func (v *Validator) registerCustomTranslations() {
	if enTrans := v.GetTranslator(LangEN); enTrans != nil {
		registerAll(v.validate, enTrans, map[string]string{
			TagSourceID:   "{0} may only contain letters, numbers, dots, underscores and hyphens",
			TagCategory:   "{0} must be a non-blank name of at most 64 characters without slashes",
			TagSourceType: "{0} must be either document or url",
			TagFileExt:    "{0} must be one of " + strings.Join(AllowedFileExtensions, ", "),
			TagHTTPURL:    "{0} must be an absolute http or https URL",
			TagTrimmed:    "{0} must not have leading or trailing spaces",
		})
	}

	if zhTrans := v.GetTranslator(LangZH); zhTrans != nil {
		registerAll(v.validate, zhTrans, map[string]string{
			TagSourceID:   "{0}只能包含字母、数字、点、下划线和连字符",
			TagCategory:   "{0}必须是不超过64个字符且不含斜杠的非空名称",
			TagSourceType: "{0}必须是 document 或 url",
			TagFileExt:    "{0}必须是以下类型之一: " + strings.Join(AllowedFileExtensions, ", "),
			TagHTTPURL:    "{0}必须是有效的 http 或 https 地址",
			TagTrimmed:    "{0}不能有前导或尾随空格",
		})
	}
}

func registerAll(validate *validator.Validate, trans ut.Translator, messages map[string]string) {
	for tag, message := range messages {
		registerTranslation(validate, trans, tag, message)
	}
}

func registerTranslation(validate *validator.Validate, trans ut.Translator, tag, message string) {
	_ = validate.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, message, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	)
}
