package models

import "errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrUnsupportedMedia = errors.New("unsupported media")
	ErrOwnerNotFound    = errors.New("owner not found")
	ErrInvalidOwnerKind = errors.New("invalid owner kind")
	ErrAssetNotFound    = errors.New("asset not found")
	ErrInvalidSize      = errors.New("invalid size")
	ErrNotFound         = errors.New("not found")
	ErrIO               = errors.New("storage failure")
	ErrEncode           = errors.New("encode failed")
)
