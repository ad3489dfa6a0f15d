package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrUnknownCode signals a referral code that maps to no affiliate.
	// Attribution callers must treat this as "no affiliate", never as a page-breaking error.
	ErrUnknownCode = errors.New("unknown referral code")
	// ErrAffiliateNotActive rejects attribution for affiliates outside the active lifecycle state.
	ErrAffiliateNotActive = errors.New("affiliate not active")

	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
	ErrIdempotencyRequired = errors.New("idempotency key required")
	ErrIdempotencyConflict = errors.New("idempotency conflict")

	// ErrNotApproved and ErrAlreadyPaid are the dispatch fast-fail preconditions.
	// The AlreadyPaid check is what keeps a doubled retry from double-transferring.
	ErrNotApproved = errors.New("commission not approved")
	ErrAlreadyPaid = errors.New("commission already paid")
	// ErrNeedsOnboarding means the preferred automated rail has no ready external account.
	ErrNeedsOnboarding = errors.New("payout rail needs onboarding")
	ErrRailNotReady    = errors.New("payout rail not ready")

	// ErrInvalidTransition rejects commission state edges outside the state machine.
	ErrInvalidTransition = errors.New("invalid commission transition")
	// ErrInvariantViolation is always a bug: a paid mark without proof, or a
	// duplicate commission slipping past the uniqueness guard. Never coerced silently.
	ErrInvariantViolation = errors.New("invariant violation")

	ErrInvalidEnvelope      = errors.New("invalid event envelope")
	ErrUnsupportedEventType = errors.New("unsupported event type")
)
