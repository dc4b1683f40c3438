package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIs_MatchesByKind(t *testing.T) {
	err := E(TaskTimeout, "task.await", "esx-01", errors.New("5 attempts"))
	wrapped := fmt.Errorf("reconfigure: %w", err)

	require.ErrorIs(t, wrapped, ErrTaskTimeout)
	require.NotErrorIs(t, wrapped, ErrTaskError)
	require.Equal(t, TaskTimeout, KindOf(wrapped))
	require.True(t, IsTaskFailure(wrapped))
}

func TestKindOf_PlainError(t *testing.T) {
	require.Equal(t, Other, KindOf(errors.New("boom")))
	require.Equal(t, Other, KindOf(nil))
}

func TestError_Message(t *testing.T) {
	err := Errorf(Transport, "inventory.list_clusters", "", "dial tcp: %s", "refused")
	require.Equal(t, "inventory.list_clusters: transport: dial tcp: refused", err.Error())

	err = E(RollbackFailed, "rollback", "prod-a", nil)
	require.Equal(t, "rollback: rollback_failed [prod-a]", err.Error())
}
