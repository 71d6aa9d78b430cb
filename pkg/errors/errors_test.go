package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	require.NotNil(t, err)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestCloneKeepsCode(t *testing.T) {
	clone := Clone(ErrNotDeleted, "case 42 is active")
	assert.Equal(t, "NOT_DELETED", clone.Code)
	assert.Equal(t, http.StatusConflict, clone.Status)
	assert.Equal(t, "case 42 is active", clone.Message)
	assert.Equal(t, "case is not archived", ErrNotDeleted.Message)
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("purge: %w", Clone(ErrExportFailure, "disk full"))
	assert.True(t, Is(wrapped, ErrExportFailure))
	assert.False(t, Is(wrapped, ErrStoreFailure))
	assert.False(t, Is(nil, ErrExportFailure))
}
