package types

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrExpired       = errors.New("expired")
	ErrConfiguration = errors.New("invalid configuration")

	ErrStoreAccess   = errors.New("member store read/write error")
	ErrChannelAccess = errors.New("notification channel error")
)

func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	} else {
		return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
	}
}
