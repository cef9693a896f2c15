package extract

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cleanPayload = `{"name":"Jane Doe","role":"CFO","confidence":"Medium","sources":[]}`

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "json_tag", in: "```json\n" + cleanPayload + "\n```", want: cleanPayload},
		{name: "no_tag", in: "```\n" + cleanPayload + "\n```", want: cleanPayload},
		{name: "single_line", in: "```json" + cleanPayload + "```", want: cleanPayload},
		{name: "crlf", in: "```JSON\r\n" + cleanPayload + "\r\n```", want: cleanPayload},
		{name: "surrounding_space", in: "  \n```json\n" + cleanPayload + "\n```\n ", want: cleanPayload},
		{name: "unfenced", in: cleanPayload, want: cleanPayload},
		{name: "only_one_layer", in: "```\n```json\n{}\n```\n```", want: "```json\n{}\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestExtract_FencedPayload(t *testing.T) {
	rec, err := Extract("```json\n"+cleanPayload+"\n```", nil)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", rec.Name)
	assert.Equal(t, "medium", string(rec.Confidence))
	assert.NotNil(t, rec.Sources)
	assert.Empty(t, rec.Sources)
}

func TestExtract_Idempotent(t *testing.T) {
	once, err := Extract("```json\n"+cleanPayload+"\n```", []string{"https://a.example"})
	require.NoError(t, err)
	twice, err := Extract(cleanPayload, []string{"https://a.example"})
	require.NoError(t, err)
	assert.True(t, reflect.DeepEqual(once, twice))

	again, err := Extract(StripFences(StripFences(cleanPayload)), []string{"https://a.example"})
	require.NoError(t, err)
	assert.Equal(t, once, again)
}

func TestExtract_FallbackSourcesFromResearch(t *testing.T) {
	research := `Jane Doe profile at https://one.example/jane. See also (https://two.example/a?b=1),
and "https://three.example/x" plus a repeat https://one.example/jane.`
	fallback := ScanURLs(research, MaxSources)

	rec, err := Extract(cleanPayload, fallback)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://one.example/jane",
		"https://two.example/a?b=1",
		"https://three.example/x",
	}, rec.Sources)
}

func TestExtract_ModelSourcesWin(t *testing.T) {
	rec, err := Extract(`{"name":"X","sources":["https://m.example","https://m.example"]}`, []string{"https://r.example"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://m.example"}, rec.Sources)
}

func TestExtract_NoSourcesNoFallback(t *testing.T) {
	rec, err := Extract(cleanPayload, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{}, rec.Sources)
}

func TestExtract_LeadingProse(t *testing.T) {
	rec, err := Extract("Here is the profile:\n"+cleanPayload+"\nThanks.", nil)
	require.NoError(t, err)
	assert.Equal(t, "CFO", rec.Role)
}

func TestExtract_TrailingProse(t *testing.T) {
	rec, err := Extract(cleanPayload+"\n\nHope this helps! {not json}", nil)
	require.NoError(t, err)
	assert.Equal(t, "CFO", rec.Role)

	rec, err = Extract("```json\n"+cleanPayload+"\n```\nLet me know if you need more.", nil)
	require.NoError(t, err)
	assert.Equal(t, "CFO", rec.Role)
}

func TestExtract_Errors(t *testing.T) {
	long := "not json " + strings.Repeat("x", 1000)
	for name, raw := range map[string]string{
		"empty":      "",
		"fence_only": "```json\n```",
		"prose":      long,
		"truncated":  `{"name":"Jane","career":[`,
		"bad_type":   `{"name": 42}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Extract(raw, nil)
			var xe *Error
			require.True(t, errors.As(err, &xe), "expected *Error, got %v", err)
			assert.LessOrEqual(t, len([]rune(xe.Excerpt)), ExcerptLimit)
		})
	}
}

func TestScanURLs(t *testing.T) {
	text := "a https://x.example/1, b <https://y.example/2> c [link](https://z.example/3). d https://x.example/1 e http:// f"
	assert.Equal(t, []string{"https://x.example/1", "https://y.example/2", "https://z.example/3"}, ScanURLs(text, 0))

	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("https://example.com/")
		b.WriteString(strings.Repeat("p", i+1))
		b.WriteString(" ")
	}
	assert.Len(t, ScanURLs(b.String(), 0), MaxSources)
	assert.Len(t, ScanURLs(b.String(), 3), 3)
	assert.Empty(t, ScanURLs("no links here", 0))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "abc", Excerpt("abc", 10))
	assert.Equal(t, "ab", Excerpt("abc", 2))
	assert.Equal(t, "héé", Excerpt("hééllo", 3))
}
