package httpapi

// Result is the response envelope shared with the admin front end.
// - code: 2000 on success
// - type: 'success' | 'error' | 'warning'
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
	// ResultTokenExpired pairs with HTTP 401; the front-end interceptor
	// redirects to login on this code.
	ResultTokenExpired = 60401
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

// Warn carries a partially applied operation: the work that succeeded is in
// result, the message says what did not.
func Warn[T any](message string, result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "warning", Message: message, Result: result}
}
