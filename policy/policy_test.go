package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rightsorg/librights-go/component"
)

func allowPolicy(name string) *component.MockPolicy {
	return &component.MockPolicy{PolicyName: name, Allow: true}
}

func denyPolicy(name string) *component.MockPolicy {
	return &component.MockPolicy{PolicyName: name, Allow: false}
}

func TestRegister_Validation(t *testing.T) {
	r := NewRegistry(0)

	assert.ErrorIs(t, r.Register(1, 10, nil), ErrInvalidPolicy)
	assert.ErrorIs(t, r.Register(1, 10, allowPolicy("")), ErrInvalidPolicy)
	assert.Empty(t, r.Policies(1))
}

func TestRegister_DuplicateIsNoOp(t *testing.T) {
	r := NewRegistry(0)

	require.NoError(t, r.Register(1, 10, allowPolicy("age-check")))
	require.NoError(t, r.Register(1, 10, allowPolicy("age-check")))

	assert.Equal(t, []uint64{10}, r.Policies(1))
}

func TestRegister_MaxPerAccount(t *testing.T) {
	r := NewRegistry(2)

	require.NoError(t, r.Register(1, 10, allowPolicy("a")))
	require.NoError(t, r.Register(1, 11, allowPolicy("b")))
	assert.ErrorIs(t, r.Register(1, 12, allowPolicy("c")), ErrTooManyPolicies)

	// Duplicate of an existing entry is still a no-op, not a limit error.
	require.NoError(t, r.Register(1, 10, allowPolicy("a")))
	assert.Equal(t, []uint64{10, 11}, r.Policies(1))
}

func TestActivePolicy_LIFOOrder(t *testing.T) {
	r := NewRegistry(0)

	p1 := allowPolicy("p1")
	p2 := allowPolicy("p2")
	p3 := allowPolicy("p3")
	require.NoError(t, r.Register(1, 101, p1))
	require.NoError(t, r.Register(1, 102, p2))
	require.NoError(t, r.Register(1, 103, p3))

	id, ok := r.ActivePolicy(1, 500)
	require.True(t, ok)
	assert.Equal(t, uint64(103), id)

	// Most recently added wins; earlier policies are never consulted.
	assert.Equal(t, 1, p3.Calls())
	assert.Equal(t, 0, p2.Calls())
	assert.Equal(t, 0, p1.Calls())
}

func TestActivePolicy_ScansBackwardUntilCompliant(t *testing.T) {
	r := NewRegistry(0)

	p1 := allowPolicy("p1")
	p2 := denyPolicy("p2")
	p3 := denyPolicy("p3")
	require.NoError(t, r.Register(1, 101, p1))
	require.NoError(t, r.Register(1, 102, p2))
	require.NoError(t, r.Register(1, 103, p3))

	id, ok := r.ActivePolicy(1, 500)
	require.True(t, ok)
	assert.Equal(t, uint64(101), id)
	assert.Equal(t, 1, p3.Calls())
	assert.Equal(t, 1, p2.Calls())
	assert.Equal(t, 1, p1.Calls())
}

func TestActivePolicy_NoneComply(t *testing.T) {
	r := NewRegistry(0)
	require.NoError(t, r.Register(1, 101, denyPolicy("p1")))

	id, ok := r.ActivePolicy(1, 500)
	assert.False(t, ok)
	assert.Zero(t, id)
}

func TestActivePolicy_EmptySet(t *testing.T) {
	r := NewRegistry(0)
	id, ok := r.ActivePolicy(9, 500)
	assert.False(t, ok)
	assert.Zero(t, id)
}

func TestActivePolicy_MutationDuringEvaluationDoesNotAffectScan(t *testing.T) {
	r := NewRegistry(0)

	hostile := &component.MockPolicy{PolicyName: "hostile"}
	hostile.ComplyFn = func(accountID, contentID uint64) bool {
		// Attempt to mutate the set mid-scan. The snapshot in progress
		// must still fall through to the older policy.
		_ = r.Register(accountID, 999, allowPolicy("injected"))
		return false
	}
	require.NoError(t, r.Register(1, 101, allowPolicy("base")))
	require.NoError(t, r.Register(1, 102, hostile))

	id, ok := r.ActivePolicy(1, 500)
	require.True(t, ok)
	assert.Equal(t, uint64(101), id)
}

func TestRevoke(t *testing.T) {
	r := NewRegistry(0)

	require.NoError(t, r.Register(1, 101, allowPolicy("a")))
	require.NoError(t, r.Register(1, 102, allowPolicy("b")))
	require.NoError(t, r.Register(1, 103, allowPolicy("c")))

	require.NoError(t, r.Revoke(1, 102))
	assert.Equal(t, []uint64{101, 103}, r.Policies(1))

	assert.ErrorIs(t, r.Revoke(1, 102), ErrPolicyNotFound)
	assert.ErrorIs(t, r.Revoke(2, 101), ErrPolicyNotFound)
}

func TestPolicy_Lookup(t *testing.T) {
	r := NewRegistry(0)
	p := allowPolicy("lookup")
	require.NoError(t, r.Register(1, 101, p))

	got, ok := r.Policy(101)
	require.True(t, ok)
	assert.Equal(t, "lookup", got.Name())

	_, ok = r.Policy(999)
	assert.False(t, ok)
}
