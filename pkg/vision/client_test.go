package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/guided-translator/internal/test"
	"github.com/nerdneilsfield/guided-translator/pkg/keypool"
	"github.com/nerdneilsfield/guided-translator/pkg/layout"
	"github.com/nerdneilsfield/guided-translator/pkg/llm"
	"github.com/nerdneilsfield/guided-translator/pkg/pdf"
)

func newPool(t *testing.T, keys ...string) *keypool.Pool {
	t.Helper()
	cfg := make([]keypool.APIKey, len(keys))
	for i, k := range keys {
		cfg[i] = keypool.APIKey{Key: k}
	}
	p, err := keypool.NewPool(cfg)
	require.NoError(t, err)
	return p
}

func TestPromptFor(t *testing.T) {
	assert.Contains(t, PromptFor(layout.ComplexityTable), "empty cell as -")
	assert.Contains(t, PromptFor(layout.ComplexityTable), "as ?")
	assert.Contains(t, PromptFor(layout.ComplexityComplex), "verbatim")
	assert.NotEqual(t, PromptFor(layout.ComplexityTable), PromptFor(layout.ComplexityComplex))
}

func TestRenderOptionsFor(t *testing.T) {
	assert.Equal(t, pdf.RenderOptions{Scale: 2.0, Quality: 0.9}, RenderOptionsFor(layout.ComplexityComplex))
	assert.Equal(t, pdf.RenderOptions{Scale: 1.5, Quality: 0.8}, RenderOptionsFor(layout.ComplexityTable))
}

func TestExtractPageFailsOverToNextKey(t *testing.T) {
	fake := &test.FuncClient{Fn: func(n int, key string, req llm.Request) (*llm.Response, error) {
		if key == "key-a-000001" {
			return nil, test.RateLimited()
		}
		return test.Text("```markdown\n| a | b |\n|---|---|\n| 1 | - |\n```"), nil
	}}
	c := NewClient(fake, newPool(t, "key-a-000001", "key-b-000002"), Options{Model: "gemini-2.0-flash"}, nil)

	text, err := c.ExtractPage(context.Background(), []byte{0xff, 0xd8}, layout.ComplexityTable)
	require.NoError(t, err)
	assert.Equal(t, "| a | b |\n|---|---|\n| 1 | - |", text)
	assert.Equal(t, []string{"key-a-000001", "key-b-000002"}, fake.Keys())

	calls := fake.Calls()
	assert.Equal(t, tablePrompt, calls[1].Request.Prompt)
	assert.Equal(t, []byte{0xff, 0xd8}, calls[1].Request.ImageJPEG)
}

func TestExtractPageAllKeysFail(t *testing.T) {
	fake := &test.FuncClient{Fn: func(int, string, llm.Request) (*llm.Response, error) {
		return nil, errors.New("service unavailable")
	}}
	c := NewClient(fake, newPool(t, "key-a-000001", "key-b-000002"), Options{}, nil)

	_, err := c.ExtractPage(context.Background(), []byte{1}, layout.ComplexityComplex)
	var agg *keypool.AggregateError
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Failures, 2)
}

func TestParseValidation(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Validation
	}{
		{"plain", `{"isValid": false, "confidence": 55, "issues": ["row 3 missing", ""]}`,
			Validation{IsValid: false, Confidence: 55, Issues: []string{"row 3 missing"}}},
		{"fenced with prose", "Here you go:\n```json\n{\"isValid\": true, \"confidence\": 140, \"issues\": []}\n```",
			Validation{IsValid: true, Confidence: 100}},
		{"garbage", "looks fine to me", DefaultValidation},
		{"broken json", `{"isValid": tru`, DefaultValidation},
		{"missing fields", `{"ok": true}`, DefaultValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseValidation(tc.raw))
		})
	}
}

func TestValidate(t *testing.T) {
	fake := &test.FuncClient{Fn: func(_ int, _ string, req llm.Request) (*llm.Response, error) {
		return test.Text(`{"isValid": true, "confidence": 92, "issues": []}`), nil
	}}
	c := NewClient(fake, newPool(t, "key-a-000001"), Options{}, nil)

	v, err := c.Validate(context.Background(), []byte{1}, "# Title")
	require.NoError(t, err)
	assert.Equal(t, Validation{IsValid: true, Confidence: 92}, v)
	assert.Contains(t, fake.Calls()[0].Request.Prompt, "# Title")
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "text", StripFences("```\ntext\n```"))
	assert.Equal(t, "text", StripFences("  text  "))
	assert.Equal(t, "a\nb", StripFences("```md\na\nb"))
}
