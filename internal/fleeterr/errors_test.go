package fleeterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrap_PreservesKindAndUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindStoreFailure, "Join", cause)

	require.True(t, Is(err, KindStoreFailure))
	require.False(t, Is(err, KindNotFound))
	require.ErrorIs(t, err, cause)
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	require.Nil(t, Wrap(KindStoreFailure, "Join", nil))
}

func TestKindOf_ReturnsFalseForPlainErrors(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	require.False(t, ok)
}

func TestNew_FormatsWithoutCause(t *testing.T) {
	err := New(KindNotFound, "Join", "cluster not found")
	require.Contains(t, err.Error(), "not_found")
	require.Contains(t, err.Error(), "Join")
}
