package manifest

import (
	"path"
	"strings"
)

const (
	// FileListName is the manifest file kept by every local store.
	FileListName = "filelist.json"
	// VersionFileName holds the version tag beside a manifest.
	VersionFileName = "version.txt"
	// BundledDirName is the inner store directory inside a build output.
	BundledDirName = "Bundles"

	fileListPrefix = "filelist_"
	fileListExt    = ".json"
	catalogPrefix  = "catalog_"
	catalogExt     = ".json"
	catalogHashExt = ".hash"
	bundleExt      = ".bundle"
)

// RemoteFileListName returns the version qualified manifest name published to the distribution root.
func RemoteFileListName(version string) string {
	return fileListPrefix + version + fileListExt
}

// VersionFromFileListName extracts the version from a published manifest name.
func VersionFromFileListName(name string) (string, bool) {
	base := path.Base(name)
	if !strings.HasPrefix(base, fileListPrefix) || !strings.HasSuffix(base, fileListExt) {
		return "", false
	}
	v := strings.TrimSuffix(strings.TrimPrefix(base, fileListPrefix), fileListExt)
	if v == "" {
		return "", false
	}
	return v, true
}

// IsIndex reports whether name is the resource catalog or one of its companion files.
// Index entries must always be served from the writable store.
func IsIndex(name string) bool {
	return strings.HasPrefix(path.Base(name), catalogPrefix)
}

// IsCatalog reports whether name is a resource catalog.
func IsCatalog(name string) bool {
	return IsIndex(name) && strings.HasSuffix(name, catalogExt)
}

// CatalogHashName returns the companion hash file name of a catalog.
func CatalogHashName(catalog string) string {
	return strings.TrimSuffix(catalog, catalogExt) + catalogHashExt
}

// IsBundle reports whether name is a content bundle.
func IsBundle(name string) bool {
	return strings.HasSuffix(name, bundleExt)
}

// IsReserved reports whether name is one of the store control files.
func IsReserved(name string) bool {
	return name == FileListName || name == VersionFileName
}
