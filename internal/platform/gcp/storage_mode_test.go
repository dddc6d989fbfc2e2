package gcp

import (
	"errors"
	"testing"
)

func TestResolveStorageSettings(t *testing.T) {
	cases := []struct {
		name         string
		mode, host   string
		preferLocal  bool
		wantMode     StorageMode
		wantInferred bool
		wantErr      StorageConfigErrorCode
	}{
		{name: "default", wantMode: StorageGCS, wantInferred: true},
		{name: "default local", preferLocal: true, wantMode: StorageLocal, wantInferred: true},
		{name: "emulator host beats local", host: "http://fake-gcs:4443", preferLocal: true, wantMode: StorageGCSEmulator, wantInferred: true},
		{name: "explicit gcs ignores host", mode: "gcs", host: "http://fake-gcs:4443", wantMode: StorageGCS},
		{name: "explicit emulator", mode: "GCS_EMULATOR", host: "http://fake-gcs:4443/", wantMode: StorageGCSEmulator},
		{name: "explicit local", mode: "local", wantMode: StorageLocal},
		{name: "unknown mode", mode: "s3", wantErr: StorageErrUnknownMode},
		{name: "missing host", mode: "gcs_emulator", wantErr: StorageErrEmulatorHostMissing},
		{name: "relative host", mode: "gcs_emulator", host: "fake-gcs:4443", wantErr: StorageErrEmulatorHostInvalid},
	}
	for _, tc := range cases {
		s, err := ResolveStorageSettings(tc.mode, tc.host, tc.preferLocal)
		if tc.wantErr != "" {
			var cfgErr *StorageConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Code != tc.wantErr {
				t.Fatalf("%s: want error %s, got %v", tc.name, tc.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if s.Mode != tc.wantMode || s.Inferred != tc.wantInferred {
			t.Fatalf("%s: got mode=%s inferred=%v", tc.name, s.Mode, s.Inferred)
		}
	}
}

func TestStorageSettingsTrimEmulatorHost(t *testing.T) {
	s, err := ResolveStorageSettings("gcs_emulator", " http://fake-gcs:4443/ ", false)
	if err != nil {
		t.Fatalf("ResolveStorageSettings: %v", err)
	}
	if s.EmulatorHost != "http://fake-gcs:4443" || !s.Cloud() {
		t.Fatalf("settings: %+v", s)
	}
}
