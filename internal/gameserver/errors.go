package gameserver

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage"
)

// ErrInvalidRequest is wrapped by every rejection of a malformed request.
var ErrInvalidRequest = errors.New("invalid request")

// ValidationError reports a reference to a campaign, character or blueprint
// that does not exist. Nothing is written when it is returned.
type ValidationError struct {
	Ref string
	ID  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Ref, e.ID)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// notFound converts storage.ErrNotFound into a ValidationError for ref.
func notFound(err error, ref, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &ValidationError{Ref: ref, ID: id}
	}
	return err
}

// toStatus maps a service error onto a gRPC status.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, character.ErrInvalidCharacter):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, storage.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, storage.ErrVersionConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
