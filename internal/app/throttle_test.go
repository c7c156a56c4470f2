package app

import (
	"testing"
	"time"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestJoinThrottle_Disabled(t *testing.T) {
	req := require.New(t)
	th := NewJoinThrottle(0, time.Second)
	for i := 0; i < 100; i++ {
		req.True(th.Allow("u1"))
	}
	var nilThrottle *JoinThrottle
	req.True(nilThrottle.Allow("u1"))
}

func TestJoinThrottle_Window(t *testing.T) {
	req := require.New(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	th := NewJoinThrottle(2, 10*time.Second)
	th.now = func() time.Time { return now }

	// Given two attempts inside the window
	req.True(th.Allow("u1"))
	req.True(th.Allow("u1"))

	// Then the third is refused, other users are unaffected
	req.False(th.Allow("u1"))
	req.True(th.Allow("u2"))

	// When the window has passed the user may join again
	now = now.Add(11 * time.Second)
	req.True(th.Allow("u1"))
}

func TestJoinThrottle_Sweep(t *testing.T) {
	req := require.New(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	th := NewJoinThrottle(1, time.Second)
	th.now = func() time.Time { return now }

	th.Allow("u1")
	now = now.Add(2 * time.Second)
	th.Allow("u2")
	th.Sweep()

	req.NotContains(th.history, domain.UserID("u1"))
	req.Contains(th.history, domain.UserID("u2"))
}
