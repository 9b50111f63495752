package contract

import "errors"

var (
	ErrUnknownTool    = errors.New("unknown tool")
	ErrBadToolArgs    = errors.New("malformed tool arguments")
	ErrMissingCallSid = errors.New("call sid is empty")
)
