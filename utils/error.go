package utils

import "errors"

var (
	ErrorRecordNotFound = errors.New("record not found")

	// ErrorLotOverRestore indicates a restoration would push a lot's
	// remaining quantity above its initial quantity.
	ErrorLotOverRestore = errors.New("restoration exceeds lot initial quantity")
)
