// Package results separates domain outcomes from infrastructure errors.
//
// Service operations return (OperationResult[S, F], error). The error return is reserved for
// infrastructure failures (database down, panics). Expected business outcomes such as
// "player not found" or "already awarded" travel on the Failure side of the result.
package results

// OperationResult holds exactly one of Success or Failure. The zero value holds neither and
// is what operations return alongside an infrastructure error.
type OperationResult[S any, F any] struct {
	Success *S
	Failure *F
}

// SuccessResult wraps a successful value.
func SuccessResult[S any, F any](v S) OperationResult[S, F] {
	return OperationResult[S, F]{Success: &v}
}

// FailureResult wraps a domain failure.
func FailureResult[S any, F any](f F) OperationResult[S, F] {
	return OperationResult[S, F]{Failure: &f}
}

func (r OperationResult[S, F]) IsSuccess() bool { return r.Success != nil }

func (r OperationResult[S, F]) IsFailure() bool { return r.Failure != nil }

// Unwrap returns the success value or the zero value of S.
func (r OperationResult[S, F]) Unwrap() S {
	var zero S
	if r.Success == nil {
		return zero
	}
	return *r.Success
}

// FailureErr returns the failure as an error when F is an error type, nil otherwise.
func (r OperationResult[S, F]) FailureErr() error {
	if r.Failure == nil {
		return nil
	}
	if err, ok := any(*r.Failure).(error); ok {
		return err
	}
	return nil
}
