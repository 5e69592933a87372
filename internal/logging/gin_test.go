package logging

import "testing"

func TestMaskSensitiveQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "page=2&limit=10", want: "page=2&limit=10"},
		{name: "oauth callback", in: "code=abc123&state=xyz", want: "code=***&state=***"},
		{name: "deep link token", in: "token=eyJhbGci&provider=openai", want: "token=***&provider=openai"},
		{name: "mixed case key", in: "Code=abc123", want: "Code=***"},
		{name: "valueless pair", in: "debug&code=abc", want: "debug&code=***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSensitiveQuery(tt.in); got != tt.want {
				t.Errorf("maskSensitiveQuery(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsTrackedPath(t *testing.T) {
	if !isTrackedPath("/api/ai/request") {
		t.Error("AI route not tracked")
	}
	if isTrackedPath("/auth/github/url") {
		t.Error("auth route tracked, want untracked")
	}
}

func TestNewRequestID(t *testing.T) {
	a := NewRequestID()
	b := NewRequestID()
	if len(a) != 8 {
		t.Errorf("request ID length = %d, want 8", len(a))
	}
	if a == b {
		t.Error("two request IDs are identical")
	}
}
