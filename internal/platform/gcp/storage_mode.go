package gcp

import (
	"fmt"
	"net/url"
	"strings"
)

// StorageMode selects where uploaded objects live.
type StorageMode string

const (
	StorageLocal       StorageMode = "local"
	StorageGCS         StorageMode = "gcs"
	StorageGCSEmulator StorageMode = "gcs_emulator"
)

type StorageSettings struct {
	Mode         StorageMode
	EmulatorHost string
	// Inferred is set when no mode was configured and one was picked.
	Inferred bool
}

func (s StorageSettings) Cloud() bool {
	return s.Mode == StorageGCS || s.Mode == StorageGCSEmulator
}

type StorageConfigErrorCode string

const (
	StorageErrUnknownMode         StorageConfigErrorCode = "unknown_mode"
	StorageErrEmulatorHostMissing StorageConfigErrorCode = "emulator_host_missing"
	StorageErrEmulatorHostInvalid StorageConfigErrorCode = "emulator_host_invalid"
)

type StorageConfigError struct {
	Code  StorageConfigErrorCode
	Value string
	Cause error
}

func (e *StorageConfigError) Error() string {
	switch e.Code {
	case StorageErrUnknownMode:
		return fmt.Sprintf("object_storage_mode %q is not one of local, gcs, gcs_emulator", e.Value)
	case StorageErrEmulatorHostMissing:
		return "object_storage_mode gcs_emulator needs storage_emulator_host"
	case StorageErrEmulatorHostInvalid:
		return fmt.Sprintf("storage_emulator_host %q must be an absolute URL such as http://fake-gcs:4443", e.Value)
	}
	return "invalid object storage settings"
}

func (e *StorageConfigError) Unwrap() error { return e.Cause }

// ResolveStorageSettings turns the raw settings into a checked mode. With no
// mode configured, an emulator host wins, then preferLocal, then gcs.
func ResolveStorageSettings(rawMode, emulatorHost string, preferLocal bool) (StorageSettings, error) {
	s := StorageSettings{
		Mode:         StorageMode(strings.ToLower(strings.TrimSpace(rawMode))),
		EmulatorHost: strings.TrimRight(strings.TrimSpace(emulatorHost), "/"),
	}
	if s.Mode == "" {
		s.Inferred = true
		switch {
		case s.EmulatorHost != "":
			s.Mode = StorageGCSEmulator
		case preferLocal:
			s.Mode = StorageLocal
		default:
			s.Mode = StorageGCS
		}
	}
	return s, s.Validate()
}

func (s StorageSettings) Validate() error {
	switch s.Mode {
	case StorageLocal, StorageGCS:
		return nil
	case StorageGCSEmulator:
	default:
		return &StorageConfigError{Code: StorageErrUnknownMode, Value: string(s.Mode)}
	}
	if s.EmulatorHost == "" {
		return &StorageConfigError{Code: StorageErrEmulatorHostMissing}
	}
	u, err := url.Parse(s.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &StorageConfigError{Code: StorageErrEmulatorHostInvalid, Value: s.EmulatorHost, Cause: err}
	}
	return nil
}
