package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/nidhogg/herd/internal/geom"
	"github.com/nidhogg/herd/internal/world"
)

// ErrUnknownInput is returned for input messages of an unrecognized type.
var ErrUnknownInput = errors.New("unknown input type")

// HerdInput returns an InputHandler that applies renderer input to a herd.
func HerdInput(h *world.Herd) InputHandler {
	return func(ctx context.Context, in *Input) error {
		switch in.Type {
		case InputScreen:
			if in.Width <= 0 || in.Height <= 0 {
				return fmt.Errorf("screen %dx%d: invalid size", in.Width, in.Height)
			}
			h.Screen().Resize(geom.Size{Width: in.Width, Height: in.Height})
			return nil
		case InputAgent, "":
			ev, err := in.AgentEvent()
			if err != nil {
				return err
			}
			return h.Dispatch(ctx, in.AgentID, ev)
		default:
			return fmt.Errorf("%w: %q", ErrUnknownInput, in.Type)
		}
	}
}
