// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package gapi

import (
	"context"
	stderr "errors"
	"fmt"
	"net/http"

	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/sakura/springbreak/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
)

// Error converts a failure from a Google Cloud client into a service error.
// Invalid or unknown resources map to ArgumentInvalid and rejected
// credentials to ConfigurationInvalid. Context errors and service errors go
// through errors.Normalize.
func Error(ctx context.Context, err error, op string) error {
	if err == nil {
		return nil
	}
	if e := errors.Context(ctx, op); e != nil {
		return e
	}

	ae, ok := apierror.FromError(err)
	if !ok {
		return errors.Normalize(err, op)
	}

	if s := ae.GRPCStatus(); s != nil {
		return &errors.Error{
			Message:       fmt.Sprintf("%s failed: %s", op, s.Message()),
			Kind:          codeKind(s.Code()),
			NestedError:   err,
			PropertyName:  "code",
			PropertyValue: s.Code().String(),
		}
	}

	msg := http.StatusText(ae.HTTPCode())
	var he *googleapi.Error
	if stderr.As(err, &he) && he.Message != "" {
		msg = he.Message
	}
	return &errors.Error{
		Message:       fmt.Sprintf("%s failed: %s", op, msg),
		Kind:          statusKind(ae.HTTPCode()),
		NestedError:   err,
		PropertyName:  "status",
		PropertyValue: ae.HTTPCode(),
	}
}

func codeKind(code codes.Code) errors.Kind {
	switch code {
	case codes.InvalidArgument, codes.NotFound:
		return errors.ArgumentInvalid
	case codes.Unauthenticated, codes.PermissionDenied:
		return errors.ConfigurationInvalid
	case codes.DeadlineExceeded:
		return errors.Timeout
	case codes.Canceled:
		return errors.Cancellation
	default:
		return errors.ExecutionException
	}
}

func statusKind(status int) errors.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound:
		return errors.ArgumentInvalid
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.ConfigurationInvalid
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return errors.Timeout
	default:
		return errors.ExecutionException
	}
}
