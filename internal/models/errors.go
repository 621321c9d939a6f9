package models

import (
	"errors"
)

var (
	// ErrEmptyMessage is returned when a text message is blank after trimming.
	ErrEmptyMessage = errors.New("message content is empty")

	// ErrUnsupportedAttachment is returned for files outside the accepted extensions.
	ErrUnsupportedAttachment = errors.New("unsupported attachment type")

	// ErrUnknownPlan is returned when a plan id is not in the catalog.
	ErrUnknownPlan = errors.New("unknown subscription plan")

	// ErrUnauthenticated is returned when no valid user context exists.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNoNavigationState is returned when the success page state is missing or invalid.
	ErrNoNavigationState = errors.New("no navigation state")

	// ErrOrderNotFound is returned when no order matches a provider reference.
	ErrOrderNotFound = errors.New("order not found")

	// ErrMessageNotFound is returned when a notified message id has no row.
	ErrMessageNotFound = errors.New("message not found")
)
