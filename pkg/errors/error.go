package errors

import (
	"bytes"
	stderrors "errors"
	"strings"
)

// ErrorCode represents a specific error code in the system.
type ErrorCode string

const (
	// GeneralInternalServerError represents a generic internal server error.
	GeneralInternalServerError ErrorCode = "general_internal_server_error"
	// GeneralRepositoryError represents a generic repository error.
	GeneralRepositoryError ErrorCode = "general_repository_error"

	// ValidationError is returned for malformed quantities, prices, currencies or requests.
	ValidationError ErrorCode = "validation_error"
	// InsufficientBalance is returned when available balance cannot cover a reservation or debit.
	InsufficientBalance ErrorCode = "insufficient_balance"
	// InsufficientLiquidity is returned when a market order finds no opposite liquidity.
	InsufficientLiquidity ErrorCode = "insufficient_liquidity"
	// SlippageExceeded is returned when opposite liquidity exists but none inside the slippage band.
	SlippageExceeded ErrorCode = "slippage_exceeded"
	// OrderNotFound is returned when an order id is unknown.
	OrderNotFound ErrorCode = "order_not_found"
	// Unauthorized is returned when a user acts on an order they do not own.
	Unauthorized ErrorCode = "unauthorized"
	// InvalidOrderState is returned when an order transition is not allowed from its current status.
	InvalidOrderState ErrorCode = "invalid_order_state"
	// ReservationNotFound is returned when a fund or liquidity reservation id is unknown.
	ReservationNotFound ErrorCode = "reservation_not_found"
	// ReservationAlreadyReleased is returned when a closed reservation is released again.
	ReservationAlreadyReleased ErrorCode = "reservation_already_released"
	// SettlementInvariantViolation signals corrupted state found while settling a trade.
	SettlementInvariantViolation ErrorCode = "settlement_invariant_violation"
	// ConcurrencyConflict is returned on lock contention, lock timeout, deadlock or serialization failure.
	ConcurrencyConflict ErrorCode = "concurrency_conflict"
	// PairHalted is returned when automatic matching on a pair is stopped.
	PairHalted ErrorCode = "pair_halted"

	// RedisConfigError represents an error when the Redis configuration is invalid or nil.
	RedisConfigError ErrorCode = "redis_config_error"
	// RedisConnectionError represents an error when connecting to Redis.
	RedisConnectionError ErrorCode = "redis_connection_error"
	// RedisGetError represents an error when getting a value from Redis.
	RedisGetError ErrorCode = "redis_get_error"
	// RedisSetError represents an error when setting a value in Redis.
	RedisSetError ErrorCode = "redis_set_error"
	// RedisDelError represents an error when deleting a value from Redis.
	RedisDelError ErrorCode = "redis_del_error"
	// RedisScanError represents an error when iterating keys in Redis.
	RedisScanError ErrorCode = "redis_scan_error"
)

// BaseError is an `error` type containing an array of ErrorDetails.
// Request validation collects one detail per offending field.
type BaseError struct {
	details []*ErrorDetails
}

// NewBaseError create BaseError with ErrorDetails
func NewBaseError(details ...*ErrorDetails) *BaseError {
	return &BaseError{details: details}
}

// AddErrorDetails add more ErrorDetails to BaseError
func (b *BaseError) AddErrorDetails(errors ...*ErrorDetails) {
	b.details = append(b.details, errors...)
}

// GetDetails get array ErrorDetails on BaseError
func (b *BaseError) GetDetails() []*ErrorDetails {
	return b.details
}

// HasDetails reports whether any detail was collected.
func (b *BaseError) HasDetails() bool {
	return len(b.details) > 0
}

// Error implement error interface
func (b *BaseError) Error() string {
	buff := bytes.NewBufferString("")

	for _, err := range b.details {
		buff.WriteString("code: ")
		buff.WriteString(err.Code)
		buff.WriteString("; error: ")
		buff.WriteString(err.Error())
		if err.Field != "" {
			buff.WriteString("; field: ")
			buff.WriteString(err.Field)
		}
		buff.WriteString("\n")
	}

	return strings.TrimSpace(buff.String())
}

// IsAnyCodeEqual check if any ErrorDetails code is equal with given code
func (b *BaseError) IsAnyCodeEqual(code string) bool {
	for _, d := range b.GetDetails() {
		if d.Code == code {
			return true
		}
	}
	return false
}

// HasCode walks the wrap chain of err and reports whether any ErrorDetails or
// BaseError in it carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		switch e := err.(type) {
		case *ErrorDetails:
			if e.Code == string(code) {
				return true
			}
		case *BaseError:
			if e.IsAnyCodeEqual(string(code)) {
				return true
			}
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// CodeOf returns the first error code found in the wrap chain of err, or
// GeneralInternalServerError when none is present.
func CodeOf(err error) ErrorCode {
	for err != nil {
		switch e := err.(type) {
		case *ErrorDetails:
			return ErrorCode(e.Code)
		case *BaseError:
			if len(e.details) > 0 {
				return ErrorCode(e.details[0].Code)
			}
		}
		err = stderrors.Unwrap(err)
	}
	return GeneralInternalServerError
}
