package blob

import (
	"context"
	"fmt"
	"os"

	infraFS "pharmacore/internal/infra/blob/fs"
	infraMemory "pharmacore/internal/infra/blob/memory"
	infraS3 "pharmacore/internal/infra/blob/s3"
)

// NewMemory returns an in-memory blob store.
func NewMemory() Store { return infraMemory.New() }

// NewFilesystem returns a filesystem blob store rooted at path.
func NewFilesystem(root string) (Store, error) { return infraFS.New(root) }

// OpenS3FromEnv constructs an S3 store using environment variables.
func OpenS3FromEnv(ctx context.Context) (Store, error) { return infraS3.OpenFromEnv(ctx) }

// Open selects a blob.Store implementation using environment variables.
//
//	PHARMACORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	PHARMACORE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("PHARMACORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("PHARMACORE_BLOB_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
