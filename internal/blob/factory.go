package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Open selects a blob store from PROCESOCORE_BLOB_DRIVER. The filesystem
// driver is the default so exports work without configuration.
func Open(ctx context.Context) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("PROCESOCORE_BLOB_DRIVER")))
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("PROCESOCORE_BLOB_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", driver)
	}
}
