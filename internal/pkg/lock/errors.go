package lock

import "errors"

// ErrLockTimeout means another request still held the account's withdrawal
// or prize-entry key when the caller's deadline passed. Callers report it
// as busy and let the user retry.
var ErrLockTimeout = errors.New("account busy: lock wait timed out")
