package errors

import stderrors "errors"

func as[T error](err error, target *T) bool {
	if err == nil {
		return false
	}
	return stderrors.As(err, target)
}
