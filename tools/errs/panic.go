package errs

import "fmt"

func ErrPanic(r any) error {
	if r == nil {
		return nil
	}
	return &CodeError{
		Code:   CodeInternal,
		Msg:    "panic recovered",
		Detail: fmt.Sprint(r),
	}
}
