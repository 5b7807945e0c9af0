package paths

import "testing"

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "absolute path",
			path: "/Users/a/app",
			want: "-Users-a-app",
		},
		{
			name: "dots become dashes",
			path: "/Users/a/app.x",
			want: "-Users-a-app-x",
		},
		{
			name: "hidden directory",
			path: "/home/a/.config/app",
			want: "-home-a--config-app",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.path); got != tt.want {
				t.Errorf("Encode(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		if got := Encode("/Users/a/app.x"); got != "-Users-a-app-x" {
			t.Fatalf("Encode not deterministic, got %q", got)
		}
	}
}

func TestEncode_Collision(t *testing.T) {
	// The encoding is lossy: these two distinct paths must collide.
	if Encode("app.name") != Encode("app/name") {
		t.Errorf("expected app.name and app/name to encode identically")
	}
}

func TestDecodeNaive(t *testing.T) {
	if got := DecodeNaive("-Users-a-app"); got != "/Users/a/app" {
		t.Errorf("DecodeNaive() = %q, want /Users/a/app", got)
	}
}

func TestSessionIDFromPath(t *testing.T) {
	got := SessionIDFromPath("/home/x/.claude/projects/-Users-a-app/s1.jsonl")
	if got != "s1" {
		t.Errorf("SessionIDFromPath() = %q, want s1", got)
	}
}
