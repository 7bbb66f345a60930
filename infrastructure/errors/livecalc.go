package errors

import "net/http"

// Error codes for the five disjoint error kinds raised while resolving
// assumption tables: Transport, HTTP-status, Auth, Decode, and Resolution (a
// composite wrapping the other four with table context).
const (
	ErrCodeTransportFailure ErrorCode = "AM_1001"
	ErrCodeHTTPStatus       ErrorCode = "AM_1002"
	ErrCodeAMAuth           ErrorCode = "AM_1003"
	ErrCodeDecode           ErrorCode = "AM_1004"
	ErrCodeResolution       ErrorCode = "AM_1005"
)

// TransportFailure wraps a CURL-style transport failure (DNS, connect, TLS).
func TransportFailure(err error) *ServiceError {
	return Wrap(ErrCodeTransportFailure, "transport failure", http.StatusBadGateway, err)
}

// HTTPStatusError represents a non-retryable (or retry-exhausted) HTTP
// response. message is a status-specific synthesized message.
func HTTPStatusError(status int, message string) *ServiceError {
	return New(ErrCodeHTTPStatus, message, status).WithDetails("status_code", status)
}

// AMAuthError represents a missing, malformed, or unrefreshable bearer token.
func AMAuthError(message string) *ServiceError {
	return New(ErrCodeAMAuth, message, http.StatusUnauthorized)
}

// DecodeError represents malformed JSON, an unexpected response shape, or a
// cache file with a bad magic/version header.
func DecodeError(message string, err error) *ServiceError {
	return Wrap(ErrCodeDecode, message, http.StatusUnprocessableEntity, err)
}

// ResolutionError wraps any of the above with (name, version) context as the
// composite "Resolution" error kind.
func ResolutionError(name, version string, err error) *ServiceError {
	return Wrap(ErrCodeResolution, "failed to resolve table "+name+":"+version, GetHTTPStatus(err), err).
		WithDetails("table_name", name).
		WithDetails("table_version", version)
}
