package grpc

import (
	"errors"

	"github.com/DRSN-tech/visual-search/pkg/e"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func GRPCErrorResponse(err error) error {
	switch {
	case errors.Is(err, e.ErrInvalidArgument),
		errors.Is(err, e.ErrNoImage),
		errors.Is(err, e.ErrImageDecode),
		errors.Is(err, e.ErrUnsupportedMediaType),
		errors.Is(err, e.ErrFileTooLarge):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, e.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, e.ErrUnauthorized.Error())
	case errors.Is(err, e.ErrIndexNotLoaded), errors.Is(err, e.ErrModelUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, e.ErrInternalServerError.Error())
	}
}
