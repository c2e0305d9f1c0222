package mokka

import (
	"net/url"
	"testing"
)

func TestDefaultURLValidator(t *testing.T) {
	tests := []struct {
		name    string
		rawURL  string
		wantErr bool
	}{
		{"https", "https://api.example.com/v1/users", false},
		{"http", "http://localhost:8080/health", false},
		{"ftp scheme", "ftp://files.example.com/report", true},
		{"file scheme", "file:///etc/passwd", true},
		{"relative", "/v1/users", true},
		{"no host", "https:///v1/users", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.rawURL)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.rawURL, err)
			}
			err = DefaultURLValidator(u)
			if (err != nil) != tt.wantErr {
				t.Errorf("DefaultURLValidator(%q) = %v, wantErr %v", tt.rawURL, err, tt.wantErr)
			}
		})
	}
}

func TestDefaultURLValidatorNil(t *testing.T) {
	if err := DefaultURLValidator(nil); err == nil {
		t.Error("nil URL should be rejected")
	}
}
