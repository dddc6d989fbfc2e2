package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/speakwell-backend/internal/platform/gcp"
	"github.com/yungbote/speakwell-backend/internal/platform/localmedia"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

var newBucketService = gcp.NewBucketService

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode         StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "object storage bootstrap failed"
	}
	return fmt.Sprintf(
		"object storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// storageSelection is the resolved bucket plus, for disk storage, the
// directory the router must serve.
type storageSelection struct {
	Bucket   gcp.BucketService
	MediaDir string
}

// resolveBucketService picks disk storage in demo mode or when asked for
// explicitly, and cloud storage otherwise.
func resolveBucketService(log *logger.Logger, cfg Config) (storageSelection, error) {
	settings, err := gcp.ResolveStorageSettings(cfg.ObjectStorageMode, cfg.StorageEmulatorHost, cfg.Mode() == ModeDemo)
	if err != nil {
		classified := classifyStorageProviderBootstrapError(settings, err)
		log.Error("Object storage provider selection failed", "mode", settings.Mode, "error", classified)
		return storageSelection{}, classified
	}
	log.Info("Selecting object storage provider",
		"mode", settings.Mode,
		"mode_inferred", settings.Inferred,
		"emulator_host", settings.EmulatorHost,
	)

	if settings.Mode == gcp.StorageLocal {
		publicBase := strings.TrimRight(localPublicBase(cfg), "/") + "/media"
		disk, err := localmedia.NewDiskBucket(log, cfg.MediaLocalDir, publicBase)
		if err != nil {
			return storageSelection{}, classifyStorageProviderBootstrapError(settings, err)
		}
		return storageSelection{Bucket: disk, MediaDir: disk.Root()}, nil
	}

	bucket, err := newBucketService(log, gcp.BucketConfig{
		Storage:            settings,
		Credentials:        cfg.GCPCredentials,
		AvatarBucket:       cfg.MediaBucketName,
		RecordingBucket:    cfg.RecordingBucketName,
		AvatarCDNDomain:    cfg.MediaCDNDomain,
		RecordingCDNDomain: cfg.MediaCDNDomain,
	})
	if err != nil {
		classified := classifyStorageProviderBootstrapError(settings, err)
		log.Error("Object storage provider bootstrap failed", "mode", settings.Mode, "error", classified)
		return storageSelection{}, classified
	}
	return storageSelection{Bucket: bucket}, nil
}

// localPublicBase is where this process is reachable for /media links.
func localPublicBase(cfg Config) string {
	addr := strings.TrimSpace(cfg.Addr)
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func classifyStorageProviderBootstrapError(settings gcp.StorageSettings, err error) error {
	out := &StorageProviderBootstrapError{
		Code:         StorageProviderBootstrapErrorConnectFailed,
		Mode:         string(settings.Mode),
		EmulatorHost: settings.EmulatorHost,
		Cause:        err,
	}
	var cfgErr *gcp.StorageConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.StorageErrUnknownMode:
			out.Code = StorageProviderBootstrapErrorInvalidMode
		case gcp.StorageErrEmulatorHostMissing:
			out.Code = StorageProviderBootstrapErrorMissingEmulatorHost
		case gcp.StorageErrEmulatorHostInvalid:
			out.Code = StorageProviderBootstrapErrorInvalidEmulatorHost
		}
	}
	return out
}
