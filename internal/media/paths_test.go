package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation(t *testing.T) {
	owner := Owner{Kind: OwnerProperty, ID: "p1"}
	assert.Equal(t, "images/properties/p1/large/a1.webp", Location(owner, SizeLarge, "a1"))
	assert.Equal(t, "images/accounts/u1/small/a2.webp", Location(Owner{Kind: OwnerAccount, ID: "u1"}, SizeSmall, "a2"))
}

func TestLocationsAreDistinct(t *testing.T) {
	owners := []Owner{
		{Kind: OwnerProperty, ID: "x"},
		{Kind: OwnerAccount, ID: "x"},
		{Kind: OwnerProperty, ID: "y"},
	}
	seen := map[string]bool{}
	for _, o := range owners {
		for _, id := range []string{"a", "b"} {
			for _, loc := range Locations(o, id) {
				require.False(t, seen[loc], "duplicate location %s", loc)
				seen[loc] = true
			}
		}
	}
	assert.Len(t, seen, 18)
}

func TestOwnerDirAndKindRoot(t *testing.T) {
	owner := Owner{Kind: OwnerAccount, ID: "u1"}
	assert.Equal(t, "images/accounts/u1", OwnerDir(owner))
	assert.Equal(t, "images/accounts", KindRoot(OwnerAccount))
}

func TestParseSize(t *testing.T) {
	for _, tok := range []string{"large", "medium", "small"} {
		s, err := ParseSize(tok)
		require.NoError(t, err)
		assert.Equal(t, tok, s.Name)
	}
	for _, tok := range []string{"huge", "", "LARGE", "original"} {
		_, err := ParseSize(tok)
		assert.ErrorIs(t, err, ErrInvalidSize, tok)
	}
}

func TestParseOwnerKind(t *testing.T) {
	k, err := ParseOwnerKind("properties")
	require.NoError(t, err)
	assert.Equal(t, OwnerProperty, k)

	k, err = ParseOwnerKind("accounts")
	require.NoError(t, err)
	assert.Equal(t, OwnerAccount, k)

	_, err = ParseOwnerKind("users")
	assert.ErrorIs(t, err, ErrInvalidOwnerKind)
}

func TestValidSegment(t *testing.T) {
	assert.True(t, ValidSegment("p1"))
	assert.True(t, ValidSegment("2Ob3j6u1mmtLQf9c0VN1bpOmr1K"))
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`, "a\x00"} {
		assert.False(t, ValidSegment(bad), "%q", bad)
	}
}
