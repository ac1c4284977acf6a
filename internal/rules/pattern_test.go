package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompilePattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pattern    string
		wantLen    int
		wantReason bool
	}{
		{name: "root", pattern: "/", wantLen: 0},
		{name: "single literal", pattern: "/public", wantLen: 1},
		{name: "trailing slash", pattern: "/public/", wantLen: 1},
		{name: "no leading slash", pattern: "public/x", wantLen: 2},
		{name: "wildcards", pattern: "/a/*/b/**", wantLen: 4},
		{name: "empty", pattern: "", wantReason: true},
		{name: "empty segment", pattern: "/a//b", wantReason: true},
		{name: "embedded star", pattern: "/a*b", wantReason: true},
		{name: "star suffix", pattern: "/img.*", wantReason: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			segments, reason := compilePattern(tt.pattern)
			if tt.wantReason {
				assert.NotEmpty(t, reason)
				assert.Nil(t, segments)
				return
			}
			assert.Empty(t, reason)
			assert.Len(t, segments, tt.wantLen)
		})
	}
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want []string
	}{
		{path: "", want: nil},
		{path: "/", want: nil},
		{path: "/a", want: []string{"a"}},
		{path: "a/b", want: []string{"a", "b"}},
		{path: "/a//b/", want: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			got := splitPath(tt.path)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchSegments_Backtracking(t *testing.T) {
	t.Parallel()

	pattern, reason := compilePattern("/a/**/b/**/c")
	assert.Empty(t, reason)

	tests := []struct {
		path string
		want bool
	}{
		{path: "/a/b/c", want: true},
		{path: "/a/x/b/y/c", want: true},
		{path: "/a/x/y/b/z/c", want: true},
		{path: "/a/b/b/c/c", want: true},
		{path: "/a/c", want: false},
		{path: "/a/b", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, matchSegments(pattern, splitPath(tt.path)))
		})
	}
}
