package docmodel

import "errors"

// Failure taxonomy for the consumer path. Terminal failures will never succeed
// on redelivery of the same event; everything else is assumed transient and
// left to the queue's redelivery mechanism.
var (
	ErrBlobNotFound   = errors.New("blob not found")
	ErrRecordNotFound = errors.New("document record not found")
	ErrExtraction     = errors.New("text extraction failed")
)

func IsTerminal(err error) bool {
	return errors.Is(err, ErrBlobNotFound) ||
		errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrExtraction)
}
