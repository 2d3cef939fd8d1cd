package protocol

import (
	"runtime"
	"testing"
)

func TestURIRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("paths below are POSIX")
	}

	tests := []struct {
		path string
		uri  DocumentURI
	}{
		{"/home/user/rules/test.yara", "file:///home/user/rules/test.yara"},
		{"/tmp/with space/a.yar", "file:///tmp/with%20space/a.yar"},
	}

	for _, tt := range tests {
		if got := FilePathToURI(tt.path); got != tt.uri {
			t.Errorf("FilePathToURI(%q) = %q, want %q", tt.path, got, tt.uri)
		}
		if got := URIToFilePath(tt.uri); got != tt.path {
			t.Errorf("URIToFilePath(%q) = %q, want %q", tt.uri, got, tt.path)
		}
	}
}

func TestURIToFilePathPassthrough(t *testing.T) {
	// non-file URIs and unparseable input come back unchanged
	if got := URIToFilePath("untitled:Untitled-1"); got != "untitled:Untitled-1" {
		t.Errorf("non-file URI = %q", got)
	}
	if got := URIToFilePath(""); got != "" {
		t.Errorf("empty URI = %q", got)
	}
}
