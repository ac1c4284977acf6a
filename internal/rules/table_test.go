package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Valid(t *testing.T) {
	t.Parallel()

	table, err := Compile([]Rule{
		{Pattern: "/", Verdict: VerdictAdmit},
		{Pattern: "/public/**", Verdict: VerdictAdmit},
		{Pattern: "/admin/**", Verdict: VerdictDeny},
		{Pattern: "/*/api-docs/**", Verdict: VerdictAdmit},
		{Pattern: "/orders/*/items", Verdict: VerdictRequireAuthenticated},
	})
	require.NoError(t, err)
	require.NotNil(t, table)

	assert.Equal(t, 5, table.Len())
}

func TestCompile_InvalidPatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rules   []Rule
		wantIdx int
	}{
		{
			name:    "empty pattern",
			rules:   []Rule{{Pattern: "", Verdict: VerdictAdmit}},
			wantIdx: 0,
		},
		{
			name: "empty segment",
			rules: []Rule{
				{Pattern: "/ok", Verdict: VerdictAdmit},
				{Pattern: "/a//b", Verdict: VerdictAdmit},
			},
			wantIdx: 1,
		},
		{
			name:    "embedded wildcard",
			rules:   []Rule{{Pattern: "/as*ts/**", Verdict: VerdictAdmit}},
			wantIdx: 0,
		},
		{
			name:    "triple star",
			rules:   []Rule{{Pattern: "/a/***", Verdict: VerdictAdmit}},
			wantIdx: 0,
		},
		{
			name:    "only slashes",
			rules:   []Rule{{Pattern: "//", Verdict: VerdictAdmit}},
			wantIdx: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			table, err := Compile(tt.rules)
			require.Error(t, err)
			assert.Nil(t, table)
			assert.True(t, IsInvalidPattern(err))

			var ipe *InvalidPatternError
			require.ErrorAs(t, err, &ipe)
			assert.Equal(t, tt.wantIdx, ipe.Index)
			assert.NotEmpty(t, ipe.Error())
		})
	}
}

func TestCompile_InvalidVerdict(t *testing.T) {
	t.Parallel()

	table, err := Compile([]Rule{{Pattern: "/ok", Verdict: Verdict("maybe")}})
	require.Error(t, err)
	assert.Nil(t, table)
	assert.True(t, IsInvalidPattern(err))
}

func TestTable_Lookup_SegmentSemantics(t *testing.T) {
	t.Parallel()

	table := MustCompile([]Rule{
		{Pattern: "/assets/**", Verdict: VerdictAdmit},
	})

	tests := []struct {
		path string
		want Verdict
	}{
		{path: "/assets", want: VerdictAdmit},
		{path: "/assets/", want: VerdictAdmit},
		{path: "/assets/img/x.png", want: VerdictAdmit},
		{path: "/assets/a/b/c/d", want: VerdictAdmit},
		{path: "/assets-backup/x", want: VerdictRequireAuthenticated},
		{path: "/assetsextra", want: VerdictRequireAuthenticated},
		{path: "/other", want: VerdictRequireAuthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, table.Lookup(tt.path))
		})
	}
}

func TestTable_Lookup_SingleSegmentWildcard(t *testing.T) {
	t.Parallel()

	table := MustCompile([]Rule{
		{Pattern: "/*/api-docs/**", Verdict: VerdictAdmit},
		{Pattern: "/users/*", Verdict: VerdictAdmit},
	})

	tests := []struct {
		path string
		want Verdict
	}{
		{path: "/v1/api-docs", want: VerdictAdmit},
		{path: "/v1/api-docs/swagger.json", want: VerdictAdmit},
		{path: "/api-docs", want: VerdictRequireAuthenticated},
		{path: "/v1/v2/api-docs", want: VerdictRequireAuthenticated},
		{path: "/users/42", want: VerdictAdmit},
		{path: "/users", want: VerdictRequireAuthenticated},
		{path: "/users/42/orders", want: VerdictRequireAuthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, table.Lookup(tt.path))
		})
	}
}

func TestTable_Lookup_MidPatternDoubleWildcard(t *testing.T) {
	t.Parallel()

	table := MustCompile([]Rule{
		{Pattern: "/api/**/health", Verdict: VerdictAdmit},
	})

	assert.Equal(t, VerdictAdmit, table.Lookup("/api/health"))
	assert.Equal(t, VerdictAdmit, table.Lookup("/api/v1/health"))
	assert.Equal(t, VerdictAdmit, table.Lookup("/api/v1/internal/health"))
	assert.Equal(t, VerdictRequireAuthenticated, table.Lookup("/api/v1/healthz"))
}

func TestTable_Lookup_RootPattern(t *testing.T) {
	t.Parallel()

	table := MustCompile([]Rule{
		{Pattern: "/", Verdict: VerdictAdmit},
	})

	assert.Equal(t, VerdictAdmit, table.Lookup("/"))
	assert.Equal(t, VerdictAdmit, table.Lookup(""))
	assert.Equal(t, VerdictRequireAuthenticated, table.Lookup("/anything"))
}

func TestTable_Lookup_CatchAllTotality(t *testing.T) {
	t.Parallel()

	empty := MustCompile(nil)

	for _, path := range []string{"/", "/a", "/a/b/c", "deep/relative/path", "//odd//slashes"} {
		assert.Equal(t, VerdictRequireAuthenticated, empty.Lookup(path), "path %q", path)
	}
}

func TestTable_Lookup_FirstMatchWins(t *testing.T) {
	t.Parallel()

	// A narrow admit listed ahead of a broad deny keeps winning no matter
	// how much the table grows around it.
	table := MustCompile([]Rule{
		{Pattern: "/public/**", Verdict: VerdictAdmit},
		{Pattern: "/**", Verdict: VerdictDeny},
		{Pattern: "/public/late", Verdict: VerdictDeny},
	})

	assert.Equal(t, VerdictAdmit, table.Lookup("/public/x"))
	assert.Equal(t, VerdictAdmit, table.Lookup("/public/late"))
	assert.Equal(t, VerdictDeny, table.Lookup("/anything/else"))
}

func TestTable_Match_ReportsRule(t *testing.T) {
	t.Parallel()

	table := MustCompile([]Rule{
		{Pattern: "/public/**", Verdict: VerdictAdmit},
	})

	rule, ok := table.Match("/public/x")
	require.True(t, ok)
	assert.Equal(t, "/public/**", rule.Pattern)

	_, ok = table.Match("/orders/42")
	assert.False(t, ok)
}

func TestTable_Lookup_PathNormalizationTolerance(t *testing.T) {
	t.Parallel()

	table := MustCompile([]Rule{
		{Pattern: "/public/**", Verdict: VerdictAdmit},
	})

	// Missing leading slash and duplicate slashes match the same rules.
	assert.Equal(t, VerdictAdmit, table.Lookup("public/x"))
	assert.Equal(t, VerdictAdmit, table.Lookup("/public//x"))
	assert.Equal(t, VerdictAdmit, table.Lookup("/public/x/"))
}

func TestTable_Lookup_Idempotent(t *testing.T) {
	t.Parallel()

	table := MustCompile([]Rule{
		{Pattern: "/public/**", Verdict: VerdictAdmit},
		{Pattern: "/admin/**", Verdict: VerdictDeny},
	})

	for i := 0; i < 100; i++ {
		assert.Equal(t, VerdictAdmit, table.Lookup("/public/x"))
		assert.Equal(t, VerdictDeny, table.Lookup("/admin/x"))
		assert.Equal(t, VerdictRequireAuthenticated, table.Lookup("/orders/42"))
	}
}

func TestTable_Lookup_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	table := MustCompile(DefaultRules())

	done := make(chan struct{})
	for i := 0; i < 16; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 1000; j++ {
				_ = table.Lookup("/assets/img/logo.png")
				_ = table.Lookup("/orders/42")
			}
		}()
	}
	for i := 0; i < 16; i++ {
		<-done
	}
}

func TestTable_Rules_Copy(t *testing.T) {
	t.Parallel()

	table := MustCompile([]Rule{
		{Pattern: "/public/**", Verdict: VerdictAdmit},
	})

	rs := table.Rules()
	require.Len(t, rs, 1)

	// Mutating the copy must not affect the table.
	rs[0].Verdict = VerdictDeny
	assert.Equal(t, VerdictAdmit, table.Lookup("/public/x"))
}

func TestMustCompile_PanicsOnError(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		MustCompile([]Rule{{Pattern: "", Verdict: VerdictAdmit}})
	})
}

func TestDefaultRules(t *testing.T) {
	t.Parallel()

	table := MustCompile(DefaultRules())

	assert.Equal(t, VerdictAdmit, table.Lookup("/"))
	assert.Equal(t, VerdictAdmit, table.Lookup("/index.html"))
	assert.Equal(t, VerdictAdmit, table.Lookup("/assets/css/site.css"))
	assert.Equal(t, VerdictAdmit, table.Lookup("/swagger-ui/index.html"))
	assert.Equal(t, VerdictAdmit, table.Lookup("/v3/api-docs/openapi.json"))
	assert.Equal(t, VerdictAdmit, table.Lookup("/public/ping"))

	// No debug console bypass in the defaults.
	assert.Equal(t, VerdictRequireAuthenticated, table.Lookup("/db-console/login"))
	assert.Equal(t, VerdictRequireAuthenticated, table.Lookup("/orders/42"))
}

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Verdict
		wantErr bool
	}{
		{in: "admit", want: VerdictAdmit},
		{in: "ADMIT", want: VerdictAdmit},
		{in: " deny ", want: VerdictDeny},
		{in: "require_authenticated", want: VerdictRequireAuthenticated},
		{in: "authenticated", want: VerdictRequireAuthenticated},
		{in: "permit", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseVerdict(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnknownVerdict)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerdict_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, VerdictAdmit.Valid())
	assert.True(t, VerdictDeny.Valid())
	assert.True(t, VerdictRequireAuthenticated.Valid())
	assert.False(t, Verdict("").Valid())
	assert.False(t, Verdict("block").Valid())
}
