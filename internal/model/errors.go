package model

import "errors"

var (
	// ErrStartup marks failures that must stop the pipeline before any event
	// is processed: missing artifacts, width mismatch, capture handle refused.
	ErrStartup = errors.New("startup failure")

	// ErrHandleLost marks the loss of the ingestion handle while running.
	ErrHandleLost = errors.New("ingestion handle lost")
)
