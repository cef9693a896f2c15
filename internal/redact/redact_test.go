package redact

import "testing"

func TestSecrets(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "Authorization: Bearer abc.def.ghi", want: "Authorization: Bearer <redacted>"},
		{in: "bad GEMINI_API_KEY=sk-123 here", want: "bad <redacted_kv> here"},
		{in: `Post "https://host/v1beta/models?key=AIzaSecret&alt=sse": EOF`, want: `Post "https://host/v1beta/models?key=<redacted>&alt=sse": EOF`},
		{in: " plain message ", want: "plain message"},
	}
	for _, tt := range tests {
		if got := Secrets(tt.in); got != tt.want {
			t.Fatalf("Secrets(%q)=%q want %q", tt.in, got, tt.want)
		}
	}
}
