package storage

import (
	"errors"
	"testing"
)

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in       string
		expected string
		wantErr  bool
	}{
		{"call.wav", "call.wav", false},
		{"My Song.wav", "My_Song.wav", false},
		{"../../etc/passwd", "etc_passwd", false},
		{`C:\Users\me\rec.mp3`, "C_Users_me_rec.mp3", false},
		{"i contain cool \u00fcml\u00e4uts.txt", "i_contain_cool_umlauts.txt", false},
		{"  spaced   out  .flac", "spaced_out_.flac", false},
		{"weird$%name!.ogg", "weirdname.ogg", false},
		{".hidden", "hidden", false},
		{"..", "", true},
		{"", "", true},
		{"日本語", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SecureFilename(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidName) {
					t.Errorf("expected ErrInvalidName, got %q, %v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestTranscriptKey(t *testing.T) {
	tests := map[string]string{
		"call.wav":       "call.json",
		"a.b.mp3":        "a.b.json",
		"noext":          "noext.json",
		"meeting.2.flac": "meeting.2.json",
	}
	for in, want := range tests {
		if got := TranscriptKey(in); got != want {
			t.Errorf("TranscriptKey(%q): expected %q, got %q", in, want, got)
		}
	}
}
