package inout

import "errors"

var (
	ErrStoreExists     = errors.New("store already exists")
	ErrStoreNotFound   = errors.New("store does not exist")
	ErrGlobalStore     = errors.New("the global store cannot be destroyed")
	ErrReservedName    = errors.New("reserved store name")
	ErrInvalidHint     = errors.New("invalid type hint")
	ErrNilCallback     = errors.New("callback cannot be nil")
	ErrNothingProvides = errors.New("nothing provides the requested type")
	ErrNotAFunc        = errors.New("not a function")
	ErrUnresolvable    = errors.New("cannot resolve required parameter")
)
