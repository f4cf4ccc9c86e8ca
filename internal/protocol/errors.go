package protocol

import (
	"errors"

	"wanbingo.sim/internal/sim/game"
	"wanbingo.sim/internal/sim/runner"
	"wanbingo.sim/internal/sim/tuning"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Run outcome.
	ErrConfig    = "E_CONFIG"
	ErrInvariant = "E_INVARIANT"
	ErrParam     = "E_PARAM"
	ErrInternal  = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrConfig:          {},
	ErrInvariant:       {},
	ErrParam:           {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps a run error to its wire code. nil maps to "".
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, game.ErrInvariant):
		return ErrInvariant
	case errors.Is(err, tuning.ErrInvalid):
		return ErrParam
	case errors.Is(err, runner.ErrConfig), errors.Is(err, game.ErrConfig):
		return ErrConfig
	default:
		return ErrInternal
	}
}
