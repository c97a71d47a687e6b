package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hasher := NewPasswordHasher()

	hash, err := hasher.Hash("Correct-Horse7")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := hasher.Verify("Correct-Horse7", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = hasher.Verify("wrong-password", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashUniqueSalts(t *testing.T) {
	hasher := NewPasswordHasher()

	first, err := hasher.Hash("SamePassword1")
	require.NoError(t, err)
	second, err := hasher.Hash("SamePassword1")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	hasher := NewPasswordHasher()

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"plain text", "not-a-hash"},
		{"wrong part count", "$argon2id$v=19$m=65536"},
		{"bad salt encoding", "$argon2id$v=19$m=65536,t=3,p=2$!!!$AAAA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := hasher.Verify("anything", tt.hash)
			require.Error(t, err)
			require.False(t, ok)
		})
	}
}

func TestDummyHashNeverMatches(t *testing.T) {
	hasher := NewPasswordHasher()

	for _, password := range []string{"", "password", "AAAAAAAA", DummyHash} {
		require.False(t, hasher.VerifyDummy(password))
	}
}

func TestDummyHashIsWellFormed(t *testing.T) {
	hasher := NewPasswordHasher()

	// A parse failure here would make the dummy comparison cheaper than a
	// real one.
	_, err := hasher.Verify("probe", DummyHash)
	require.NoError(t, err)
}
