package caches

import (
	"errors"
	"fmt"
)

// ErrValidation matches any ValidationError through errors.Is.
var ErrValidation = errors.New("cache validation failed")

type ValidationError struct {
	Reason string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("creation of cache failed for reason : %s ", ve.Reason)

}

func (ve ValidationError) Is(target error) bool {
	return target == ErrValidation
}
