// Package sayit implements the spoken dismissal challenge.
//
// The user reads a list of scripts aloud one after another. Each final
// transcript from the speech recognizer is graded against the active script
// with the Levenshtein distance; a passing attempt advances to the next script,
// a failing one retries the same script.
//
// Engine is a single-writer state machine. It is not safe for concurrent use:
// its owner serializes Start, Handle, StartListening and Stop calls, usually
// from one event loop goroutine.
package sayit
