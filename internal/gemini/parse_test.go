package gemini

import (
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.in); got != tt.want {
				t.Fatalf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Ingredients []string `json:"ingredients"`
	}
	raw := "```json\n{\"ingredients\":[\"tomato\",\"basil\"]}\n```"
	if err := decodeJSON(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Ingredients) != 2 || out.Ingredients[0] != "tomato" {
		t.Fatalf("ingredients = %v", out.Ingredients)
	}

	if err := decodeJSON("", &out); err == nil {
		t.Fatal("empty body should fail")
	}
	if err := decodeJSON("not json", &out); err == nil {
		t.Fatal("invalid json should fail")
	}
}

func TestParseDataURI(t *testing.T) {
	mime, data, err := parseDataURI("data:image/png;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if mime != "image/png" {
		t.Fatalf("mime = %q", mime)
	}
	if string(data) != "hello" {
		t.Fatalf("data = %q", data)
	}

	for _, bad := range []string{
		"http://example.com/image.png",
		"data:image/png;base64",
		"data:image/png,notbase64",
		"data:image/png;base64,!!!",
	} {
		if _, _, err := parseDataURI(bad); err == nil {
			t.Fatalf("parseDataURI(%q) should fail", bad)
		}
	}
}
