package validator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchRequest struct {
	Query    string   `json:"query" validate:"required,trimmed"`
	TopK     int      `json:"top_k" validate:"gte=1,lte=100"`
	Category []string `json:"categories" validate:"dive,category"`
	Source   string   `json:"source_type" validate:"sourcetype"`
}

type urlRequest struct {
	ID          string `json:"id" validate:"required,sourceid"`
	URL         string `json:"url" validate:"required,httpurl"`
	Credibility int    `json:"credibility_score" validate:"omitempty,gte=1,lte=5"`
	FileName    string `json:"file_name" validate:"fileext"`
}

func TestValidateValid(t *testing.T) {
	v := New()
	req := searchRequest{Query: "q", TopK: 10, Category: []string{"finance"}, Source: "url"}
	assert.NoError(t, v.Validate(req))
	assert.Nil(t, v.ValidateWithLang(req, LangEN))
}

func TestValidateUsesJSONFieldNames(t *testing.T) {
	errs := New().ValidateWithLang(searchRequest{TopK: 0}, LangEN)
	require.True(t, errs.HasErrors())

	fields := errs.ByField()
	assert.Contains(t, fields, "query")
	assert.Contains(t, fields, "top_k")
	assert.Equal(t, "query", errs.FirstField())
}

func TestCustomRules(t *testing.T) {
	v := New()
	tests := []struct {
		name  string
		req   urlRequest
		field string
	}{
		{"bad id", urlRequest{ID: "../etc", URL: "https://a.io"}, "id"},
		{"relative url", urlRequest{ID: "u1", URL: "/just/a/path"}, "url"},
		{"ftp url", urlRequest{ID: "u1", URL: "ftp://a.io/x"}, "url"},
		{"credibility", urlRequest{ID: "u1", URL: "https://a.io", Credibility: 6}, "credibility_score"},
		{"file", urlRequest{ID: "u1", URL: "https://a.io", FileName: "x.exe"}, "file_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.ValidateWithLang(tt.req, LangEN)
			require.True(t, errs.HasErrors())
			assert.Contains(t, errs.ByField(), tt.field)
		})
	}

	assert.Nil(t, v.ValidateWithLang(urlRequest{ID: "doc_1.v2", URL: "http://a.io/p", Credibility: 3, FileName: "A.PDF"}, LangEN))
}

func TestCategoryRule(t *testing.T) {
	assert.NoError(t, Var("research papers", "category"))
	assert.Error(t, Var("a/b", "category"))
	assert.Error(t, Var("   ", "category"))
	assert.Error(t, Var(string(make([]byte, 65)), "category"))
}

func TestTranslatedMessages(t *testing.T) {
	v := New()
	req := urlRequest{ID: "u1", URL: "ftp://x"}

	en := v.ValidateWithLang(req, LangEN)
	require.True(t, en.HasErrors())
	assert.Equal(t, "url must be an absolute http or https URL", en.First())

	zh := v.ValidateWithLang(req, "zh-CN,zh;q=0.9")
	require.True(t, zh.HasErrors())
	assert.Equal(t, "url必须是有效的 http 或 https 地址", zh.First())
}

func TestValidationErrorsFormat(t *testing.T) {
	errs := NewValidationError("top_k", "gte", "top_k must be 1 or greater")
	assert.Equal(t, "validation failed: top_k must be 1 or greater", errs.Error())
	assert.Contains(t, fmt.Sprintf("%+v", errs), "[0] top_k")

	var empty *ValidationErrors
	assert.False(t, empty.HasErrors())
	assert.Equal(t, "", empty.First())
}

func TestIsAllowedFile(t *testing.T) {
	for _, name := range []string{"a.pdf", "b.DOCX", "c.doc", "notes.md", "x.txt"} {
		assert.True(t, IsAllowedFile(name), name)
	}
	assert.False(t, IsAllowedFile("image.png"))
	assert.False(t, IsAllowedFile("noext"))
}
