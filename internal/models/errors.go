package models

import "errors"

var (
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidBar        = errors.New("invalid bar (high < low)")
	ErrInvalidVolume     = errors.New("invalid volume")
	ErrInvalidRange      = errors.New("invalid date range")
	ErrDuplicateDate     = errors.New("duplicate bar date for symbol")
	ErrMalformedRecord   = errors.New("malformed k-line record")
	ErrFetchFailure      = errors.New("market data fetch failed")
	ErrStaleLoad         = errors.New("load superseded by a newer request")
	ErrAlignmentMismatch = errors.New("benchmark series length mismatch")
	ErrInvalidRuleID     = errors.New("invalid rule ID")
	ErrNoThresholds      = errors.New("rule must set at least one threshold")
	ErrInvalidThreshold  = errors.New("thresholds must be non-negative")
	ErrRuleNotFound      = errors.New("rule not found")
	ErrNoSession         = errors.New("no data loaded for the session")
)
