package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
	classDataException  = "22"
)

func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsCheckViolation reports a rejected CHECK constraint, which on coupons
// means the redeemed_count bounds were about to be broken.
func IsCheckViolation(err error) bool {
	return hasCode(err, codeCheckViolation)
}

// IsDataException reports a value the database refused to store, such as a
// string longer than its column (SQLSTATE class 22).
func IsDataException(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, classDataException)
	}
	return false
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

const codeLockNotAvailable = "55P03"

// ErrCommitFailed marks a failed COMMIT. The transaction may or may not have
// been applied.
var ErrCommitFailed = errors.New("commit tx")

// IsLockTimeout reports that lock_timeout expired while waiting for a row lock.
func IsLockTimeout(err error) bool {
	return hasCode(err, codeLockNotAvailable)
}
