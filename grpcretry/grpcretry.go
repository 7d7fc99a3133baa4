// Package grpcretry adapts the retry interceptor to gRPC unary calls.
package grpcretry

import (
	"context"
	"net/http"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vietddude/redial/retry"
)

// UnaryClientInterceptor returns a grpc.UnaryClientInterceptor that routes
// every unary call through in. Unavailable is surfaced as a transport
// failure, ResourceExhausted becomes a rate-limit result carrying the
// server's RetryInfo hint, and server-side codes become 5xx results, so the
// core loops apply unchanged.
func UnaryClientInterceptor(in *retry.Interceptor) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		attempt := func(ctx context.Context, callID string, payload any) (retry.Result, error) {
			if err := invoker(ctx, method, req, reply, cc, opts...); err != nil {
				return resultFromError(err)
			}
			return retry.Result{OK: true, Body: reply}, nil
		}

		res, err := in.Do(ctx, attempt, method, req)
		if err != nil {
			return err
		}
		if !res.OK {
			if e, ok := res.Body.(error); ok {
				return e
			}
			return status.Error(codes.Unknown, "call failed")
		}
		return nil
	}
}

// resultFromError shapes a failed invocation for the interceptor. Errors
// that should hit the transport loop are returned on the error path; status
// errors with a usable shape become structural results carrying the original
// error in Body so it can be handed back verbatim.
func resultFromError(err error) (retry.Result, error) {
	s, ok := status.FromError(err)
	if !ok || s.Code() == codes.Unavailable {
		// Not a status error (dial failures and the like) or an
		// explicitly transient one.
		return retry.Result{}, err
	}

	switch s.Code() {
	case codes.ResourceExhausted:
		res := retry.Result{Code: http.StatusTooManyRequests, Body: err}
		if d, ok := retryDelay(s); ok {
			res.RetryAfter = d
			res.HasRetryAfter = true
		}
		return res, nil
	case codes.Internal, codes.Unknown, codes.DataLoss, codes.Aborted:
		return retry.Result{Code: http.StatusInternalServerError, Body: err}, nil
	case codes.Canceled, codes.DeadlineExceeded:
		return retry.Result{}, err
	default:
		return retry.Result{Code: httpCode(s.Code()), Body: err}, nil
	}
}

// retryDelay extracts the server's RetryInfo wait hint, if present.
func retryDelay(s *status.Status) (d time.Duration, ok bool) {
	for _, detail := range s.Details() {
		if info, isRetryInfo := detail.(*errdetails.RetryInfo); isRetryInfo {
			return info.GetRetryDelay().AsDuration(), true
		}
	}
	return 0, false
}

// httpCode maps terminal status codes onto the numeric classes the
// interceptor understands. Anything unmapped lands below 500 and is
// therefore terminal.
func httpCode(c codes.Code) int {
	switch c {
	case codes.InvalidArgument, codes.OutOfRange, codes.FailedPrecondition:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
