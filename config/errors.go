// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidBackend indicates the ledger backend name is not recognized.
	ErrInvalidBackend = errors.New("config: invalid backend (must be \"bolt\" or \"memory\")")

	// ErrInvalidListenAddr indicates the metrics listen address is malformed.
	ErrInvalidListenAddr = errors.New("config: invalid listen address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrInvalidEnvelopeLayout indicates the envelope layout is not recognized.
	ErrInvalidEnvelopeLayout = errors.New("config: invalid envelope layout (must be \"inline\" or \"separate\")")

	// ErrInvalidRecordSize indicates a negative maximum record size.
	ErrInvalidRecordSize = errors.New("config: max record size must not be negative")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfig indicates the config file is not valid YAML for Config.
	ErrInvalidConfig = errors.New("config: malformed configuration file")
)
