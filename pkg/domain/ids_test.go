package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "purchasegate/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant at trust boundaries:
// IDs must be non-empty, well-formed UUIDs. Nil UUIDs parse and are rejected
// later by service-layer IsNil checks.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseChildID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParsePackID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("nil UUID parses but reports IsNil", func(t *testing.T) {
		id, err := ParsePurchaseID(uuid.Nil.String())
		require.NoError(t, err)
		assert.True(t, id.IsNil())
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		raw := uuid.New()
		id, err := ParseParentID(raw.String())
		require.NoError(t, err)
		assert.Equal(t, ParentID(raw), id)
		assert.Equal(t, raw.String(), id.String())
	})
}

func TestParseApprovalToken(t *testing.T) {
	_, err := ParseApprovalToken("")
	require.Error(t, err)

	tok, err := ParseApprovalToken("opaque-token")
	require.NoError(t, err)
	assert.False(t, tok.IsNil())
	assert.Equal(t, "opaque-token", tok.String())
}

func TestNewIDsAreUnique(t *testing.T) {
	assert.NotEqual(t, NewPurchaseID(), NewPurchaseID())
	assert.False(t, NewEntitlementID().IsNil())
}

func TestIDsEncodeAsUUIDStrings(t *testing.T) {
	raw := uuid.MustParse("f0000000-0000-4000-8000-0000000000a1")
	data, err := json.Marshal(struct {
		Parent ParentID `json:"parent"`
	}{ParentID(raw)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"parent":"f0000000-0000-4000-8000-0000000000a1"}`, string(data))

	var decoded struct {
		Parent ParentID `json:"parent"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ParentID(raw), decoded.Parent)
}
