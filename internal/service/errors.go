package service

import (
	"errors"
	"fmt"
	"strings"
)

// Centralized service layer errors.
// All errors returned by service methods are defined here for consistency
// and to make error handling in handlers predictable.

// ===== Error Classes =====
// Every error a service returns matches exactly one of these with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("progress store unavailable")
)

// ===== Not Found Errors =====
var (
	ErrEntityNotFound   = fmt.Errorf("%w: progress record", ErrNotFound)
	ErrContractNotFound = fmt.Errorf("%w: contract", ErrNotFound)
	ErrQuestNotFound    = fmt.Errorf("%w: quest", ErrNotFound)
)

// ===== Input Errors =====
var (
	ErrQuestHasNoGuilds     = fmt.Errorf("%w: quest has no guilds", ErrInvalidInput)
	ErrContractUserMismatch = fmt.Errorf("%w: contract belongs to another user", ErrInvalidInput)
	ErrContractNotActive    = fmt.Errorf("%w: contract is not active", ErrInvalidInput)
)

// ===== Store Errors =====
var (
	ErrWriteConflict           = errors.New("record changed concurrently too many times")
	ErrRepeatedUniqueViolation = errors.New("composite key collided on retry")
)

// ===== Distribution Errors =====
var (
	ErrPartialDistribution = errors.New("reward applied to some guilds only")
	ErrDistributionFailed  = errors.New("reward applied to no guild")
)

func invalidInput(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

func storeUnavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// DistributionError lists the guilds a fan-out could not update. It matches
// ErrPartialDistribution or ErrDistributionFailed, and every failed guild's
// own error, with errors.Is.
type DistributionError struct {
	ContractID string
	Total      int
	FailedIdx  []int
	GuildIDs   []string
	Causes     []error
}

func (e *DistributionError) Error() string {
	return fmt.Sprintf("contract %s: reward failed for %d of %d guilds (indices %v: %s)",
		e.ContractID, len(e.FailedIdx), e.Total, e.FailedIdx, strings.Join(e.GuildIDs, ", "))
}

func (e *DistributionError) Unwrap() []error {
	kind := ErrPartialDistribution
	if len(e.FailedIdx) == e.Total {
		kind = ErrDistributionFailed
	}
	return append([]error{kind}, e.Causes...)
}
