package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	err := NewDomainError(CodeNotFound, "Invoice not found")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))

	wrapped := fmt.Errorf("load invoice: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))

	var de *DomainError
	assert.True(t, errors.As(wrapped, &de))
	assert.Equal(t, "Invoice not found", de.Message)
}

func TestWrapDomainError(t *testing.T) {
	cause := errors.New("duplicate key value violates unique constraint")
	err := WrapDomainError(CodeAlreadyExists, "Invoice number already exists", cause)
	assert.True(t, errors.Is(err, ErrAlreadyExists))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "Invoice number already exists", err.Error())
}

func TestFilter_Normalize(t *testing.T) {
	f := Filter{Page: 0, PageSize: 500, OrderDir: "sideways"}
	f.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 100, f.PageSize)
	assert.Equal(t, "desc", f.OrderDir)
	assert.NotNil(t, f.Filters)
	assert.Equal(t, 0, f.Offset())
}

func TestBaseAggregateRoot_Versions(t *testing.T) {
	agg := NewBaseAggregateRoot()
	agg.SetPersistedVersion(agg.GetVersion())
	agg.IncrementVersion()
	agg.IncrementVersion()
	assert.Equal(t, 3, agg.GetVersion())
	assert.Equal(t, 1, agg.PersistedVersion())
}
