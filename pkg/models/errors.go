package models

import "errors"

// Caller errors surfaced synchronously by rule and history operations.
var (
	ErrInvalidRule           = errors.New("invalid rule")
	ErrDuplicateRule         = errors.New("duplicate rule id")
	ErrRuleNotFound          = errors.New("rule not found")
	ErrRecordNotFound        = errors.New("alert record not found")
	ErrMalformedNotification = errors.New("malformed alert notification")
)

// Sensor errors. SensorUnavailable is permanent for the process lifetime;
// SensorRead is transient and retried on the next tick.
var (
	ErrSensorUnavailable = errors.New("sensor unavailable on this platform")
	ErrSensorRead        = errors.New("sensor read failed")
)
