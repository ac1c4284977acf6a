package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipal_Expired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		principal *Principal
		want      bool
	}{
		{
			name:      "nil principal",
			principal: nil,
			want:      false,
		},
		{
			name:      "zero expiry never expires",
			principal: &Principal{Subject: "alice"},
			want:      false,
		},
		{
			name:      "future expiry",
			principal: &Principal{Subject: "alice", ExpiresAt: time.Now().Add(time.Hour)},
			want:      false,
		},
		{
			name:      "past expiry",
			principal: &Principal{Subject: "alice", ExpiresAt: time.Now().Add(-time.Minute)},
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.principal.Expired())
		})
	}
}

func TestPrincipal_Authenticated(t *testing.T) {
	t.Parallel()

	var nilPrincipal *Principal
	assert.False(t, nilPrincipal.Authenticated())
	assert.False(t, (&Principal{}).Authenticated())
	assert.False(t, (&Principal{Subject: "alice", ExpiresAt: time.Now().Add(-time.Second)}).Authenticated())
	assert.True(t, (&Principal{Subject: "alice"}).Authenticated())
	assert.True(t, (&Principal{Subject: "alice", ExpiresAt: time.Now().Add(time.Hour)}).Authenticated())
}

func TestPrincipal_Roles(t *testing.T) {
	t.Parallel()

	p := &Principal{Subject: "alice", Roles: []string{"ADMIN", "USER"}}

	assert.True(t, p.HasRole("ADMIN"))
	assert.True(t, p.HasRole("USER"))
	assert.False(t, p.HasRole("admin"), "role comparison is case-sensitive")
	assert.False(t, p.HasRole("AUDITOR"))

	assert.True(t, p.HasAnyRole("AUDITOR", "USER"))
	assert.False(t, p.HasAnyRole("AUDITOR", "OPERATOR"))
	assert.False(t, p.HasAnyRole())

	var nilPrincipal *Principal
	assert.False(t, nilPrincipal.HasRole("ADMIN"))
}

func TestPrincipal_HasScope(t *testing.T) {
	t.Parallel()

	p := &Principal{Subject: "alice", Scopes: []string{"read", "write"}}
	assert.True(t, p.HasScope("read"))
	assert.False(t, p.HasScope("delete"))

	var nilPrincipal *Principal
	assert.False(t, nilPrincipal.HasScope("read"))
}

func TestPrincipal_Clone(t *testing.T) {
	t.Parallel()

	t.Run("nil clone is nil", func(t *testing.T) {
		t.Parallel()
		var p *Principal
		assert.Nil(t, p.Clone())
	})

	t.Run("deep copy", func(t *testing.T) {
		t.Parallel()
		orig := &Principal{
			Subject:  "alice",
			Username: "alice",
			Roles:    []string{"ADMIN"},
			Scopes:   []string{"read"},
			Claims:   map[string]interface{}{"dept": "eng"},
		}

		clone := orig.Clone()
		require.NotNil(t, clone)
		assert.Equal(t, orig, clone)

		clone.Roles[0] = "USER"
		clone.Scopes[0] = "write"
		clone.Claims["dept"] = "ops"

		assert.Equal(t, "ADMIN", orig.Roles[0])
		assert.Equal(t, "read", orig.Scopes[0])
		assert.Equal(t, "eng", orig.Claims["dept"])
	})
}

func TestPrincipalContext(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		p := &Principal{Subject: "alice"}
		ctx := ContextWithPrincipal(context.Background(), p)

		got, ok := PrincipalFromContext(ctx)
		require.True(t, ok)
		assert.Same(t, p, got)
	})

	t.Run("absent", func(t *testing.T) {
		t.Parallel()
		got, ok := PrincipalFromContext(context.Background())
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("nil principal treated as anonymous", func(t *testing.T) {
		t.Parallel()
		ctx := ContextWithPrincipal(context.Background(), nil)
		_, ok := PrincipalFromContext(ctx)
		assert.False(t, ok)
	})

	t.Run("must panics when absent", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			MustPrincipalFromContext(context.Background())
		})
	})
}

func TestAuthErrorContext(t *testing.T) {
	t.Parallel()

	assert.NoError(t, AuthErrorFromContext(context.Background()))

	ctx := ContextWithAuthError(context.Background(), ErrInvalidToken)
	assert.ErrorIs(t, AuthErrorFromContext(ctx), ErrInvalidToken)
}
