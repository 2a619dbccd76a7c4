package validator

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Custom validation tags
const (
	TagSourceID   = "sourceid"   // 来源 ID: 字母数字 . _ -，不含路径分隔符
	TagCategory   = "category"   // 分类名: 非空白，无斜杠，最多 64 字符
	TagSourceType = "sourcetype" // document | url
	TagFileExt    = "fileext"    // 允许上传的文件扩展名
	TagHTTPURL    = "httpurl"    // 绝对 http(s) URL
	TagTrimmed    = "trimmed"    // 无首尾空白
)

// AllowedFileExtensions lists the upload formats accepted by the document API.
var AllowedFileExtensions = []string{".pdf", ".doc", ".docx", ".txt", ".md"}

var sourceIDRegex = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

func (v *Validator) registerCustomRules() {
	_ = v.validate.RegisterValidation(TagSourceID, validateSourceID)
	_ = v.validate.RegisterValidation(TagCategory, validateCategory)
	_ = v.validate.RegisterValidation(TagSourceType, validateSourceType)
	_ = v.validate.RegisterValidation(TagFileExt, validateFileExt)
	_ = v.validate.RegisterValidation(TagHTTPURL, validateHTTPURL)
	_ = v.validate.RegisterValidation(TagTrimmed, validateTrimmed)
}

// 空值交给 required 处理

func validateSourceID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return sourceIDRegex.MatchString(value)
}

func validateCategory(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	if strings.TrimSpace(value) == "" || len(value) > 64 {
		return false
	}
	return !strings.ContainsAny(value, "/\\")
}

func validateSourceType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "document", "url":
		return true
	}
	return false
}

func validateFileExt(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return IsAllowedFile(value)
}

// IsAllowedFile reports whether name carries one of AllowedFileExtensions.
func IsAllowedFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedFileExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func validateHTTPURL(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func validateTrimmed(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == strings.TrimSpace(value)
}
