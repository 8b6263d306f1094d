package domain

import "errors"

var (
	ErrNotAuthorized          = errors.New("not authorized")
	ErrAccessRequired         = errors.New("access not granted")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrEmailNotRegistered     = errors.New("email not registered")
	ErrInvalidEmail           = errors.New("invalid email address")
	ErrInvalidGrantArguments  = errors.New("invalid grant arguments")
	ErrInvalidState           = errors.New("invalid session state")
	ErrInputTimeout           = errors.New("input timeout")
	ErrUnknownBrand           = errors.New("unknown brand")
	ErrFieldTooLong           = errors.New("field value too long")
	ErrFieldRequired          = errors.New("field value required")
	ErrTemplateNotFound       = errors.New("template not found")
	ErrDeliveryFailed         = errors.New("receipt delivery failed")
	ErrStorageCorrupt         = errors.New("storage corrupt")
)
