package app

import (
	"context"
	"errors"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	ReasonGeneric   = "Unable to join this chat. Try again later."
	ReasonNotMember = "You are not a member of this chat."
	ReasonThrottled = "Too many join attempts. Try again later."
)

type Verdict struct {
	Accepted bool
	Reason   string
}

// Gate admits or refuses joins. It never returns an error: validator
// failures become rejections.
type Gate struct {
	validator core.MembershipValidator
	throttle  *JoinThrottle
	group     singleflight.Group
}

func NewGate(validator core.MembershipValidator, throttle *JoinThrottle) *Gate {
	return &Gate{validator: validator, throttle: throttle}
}

func (g *Gate) Validate(ctx context.Context, user domain.UserID, room domain.RoomID) Verdict {
	if !g.throttle.Allow(user) {
		log.Warn().Str("module", "app.gate").Str("user", string(user)).Str("room", string(room)).Msg("join throttled")
		return Verdict{Reason: ReasonThrottled}
	}

	// Identical in-flight checks share one validator call. The call is
	// detached from the first caller's cancellation; each caller stops
	// waiting on its own ctx.
	key := string(user) + "\x00" + string(room)
	ch := g.group.DoChan(key, func() (any, error) {
		accepted, reason, err := g.validator.Validate(context.WithoutCancel(ctx), user, room)
		if err != nil {
			return nil, err
		}
		return Verdict{Accepted: accepted, Reason: reason}, nil
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		res.Err = ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		log.Error().Err(res.Err).Str("module", "app.gate").Str("user", string(user)).Str("room", string(room)).
			Bool("unavailable", errors.Is(res.Err, core.ErrValidatorUnavailable)).Msg("validator failed")
		return Verdict{Reason: ReasonGeneric}
	}
	verdict := res.Val.(Verdict)
	if !verdict.Accepted && verdict.Reason == "" {
		verdict.Reason = ReasonNotMember
	}
	return verdict
}

// AllowAll accepts every join. Used when no validator endpoint is configured.
type AllowAll struct{}

func (AllowAll) Validate(context.Context, domain.UserID, domain.RoomID) (bool, string, error) {
	return true, "", nil
}
