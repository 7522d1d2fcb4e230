package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatRecordInsertionOrder(t *testing.T) {
	r := NewFlatRecord()
	r.Set("c", Number(3))
	r.Set("a", Number(1))
	r.Set("b", Number(2))

	assert.Equal(t, []string{"c", "a", "b"}, r.Keys())
}

func TestFlatRecordLastWriteWinsKeepsPosition(t *testing.T) {
	r := NewFlatRecord()
	r.Set("perm", Number(1))
	r.Set("other", Number(5))
	r.Set("perm", Number(42))

	assert.Equal(t, []string{"perm", "other"}, r.Keys())

	v, ok := r.Get("perm")
	require.True(t, ok)
	assert.Equal(t, float64(42), v.Num)
}

func TestFlatRecordDelete(t *testing.T) {
	r := NewFlatRecord()
	r.Set("a", Number(1))
	r.Set("b", Number(2))

	r.Delete("a")
	r.Delete("never-existed") // no-op

	assert.Equal(t, []string{"b"}, r.Keys())
	_, ok := r.Get("a")
	assert.False(t, ok)
}

func TestFlatRecordCloneIsIndependent(t *testing.T) {
	r := NewFlatRecord()
	r.Set("a", Number(1))

	c := r.Clone()
	c.Set("a", Missing)
	c.Set("b", Number(2))

	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, KindNumber, v.Kind)

	_, ok = r.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}
