package agreement

import "errors"

var (
	// ErrNilDependency indicates a required collaborator was not provided.
	ErrNilDependency = errors.New("agreement: nil dependency")

	// ErrZeroTotal indicates an agreement over a zero amount.
	ErrZeroTotal = errors.New("agreement: zero total")

	// ErrEmptyCurrency indicates an empty currency identifier.
	ErrEmptyCurrency = errors.New("agreement: empty currency")

	// ErrDuplicateAgreement indicates the proof digest already exists.
	ErrDuplicateAgreement = errors.New("agreement: duplicate agreement")

	// ErrAgreementNotFound indicates no agreement matches the proof.
	ErrAgreementNotFound = errors.New("agreement: not found")

	// ErrAgreementClosed indicates the agreement was already settled.
	ErrAgreementClosed = errors.New("agreement: already closed")

	// ErrAccountMismatch indicates the agreement binds a different account.
	ErrAccountMismatch = errors.New("agreement: account mismatch")

	// ErrNoCustodian indicates the content has no registered custodian.
	ErrNoCustodian = errors.New("agreement: no custodian for content")

	// ErrNotHolder indicates the caller is not the content holder.
	ErrNotHolder = errors.New("agreement: caller is not the holder")

	// ErrCustodianInactive indicates the custodian is not effectively active.
	ErrCustodianInactive = errors.New("agreement: custodian not active")

	// ErrNoCompliantPolicy indicates no registered policy admits the account.
	ErrNoCompliantPolicy = errors.New("agreement: no compliant policy")

	// ErrDisbursementFailed indicates a transfer leg failed; the
	// operation was rolled back.
	ErrDisbursementFailed = errors.New("agreement: disbursement failed")

	// ErrReentrantCall indicates a nested re-entrant settlement was rejected.
	ErrReentrantCall = errors.New("agreement: re-entrant call")
)
