package db

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned when Create hits an existing document ID.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrIndexRequired is returned when an ordered query needs a composite index that is not provisioned.
	ErrIndexRequired = errors.New("query requires an index")
)

// translate maps gRPC status codes onto the package sentinels and adds context.
func translate(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %w", msg, ErrAlreadyExists)
	case codes.FailedPrecondition:
		if strings.Contains(strings.ToLower(status.Convert(err).Message()), "index") {
			return fmt.Errorf("%s: %w: %v", msg, ErrIndexRequired, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
