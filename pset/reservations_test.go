package pset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReservations_SecondClaimOnHeldKeyFails(t *testing.T) {
	r := NewReservations()
	require.NoError(t, r.Reserve([]string{"a:0", "b:1"}, time.Minute))
	err := r.Reserve([]string{"b:1"}, time.Minute)
	require.ErrorIs(t, err, ErrUTXOReserved)
}

func TestReservations_ReleaseFreesKey(t *testing.T) {
	r := NewReservations()
	require.NoError(t, r.Reserve([]string{"a:0"}, time.Minute))
	r.Release([]string{"a:0"})
	require.NoError(t, r.Reserve([]string{"a:0"}, time.Minute))
}

func TestReservations_ExpiredHoldIsFree(t *testing.T) {
	r := NewReservations()
	require.NoError(t, r.Reserve([]string{"a:0"}, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	require.False(t, r.isHeld("a:0"))
	require.NoError(t, r.Reserve([]string{"a:0"}, time.Minute))
}
