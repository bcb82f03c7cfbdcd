package port

// FileInfo describes one image file found during a folder scan.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime int64
}

// FolderScanner walks an ordered folder set and returns the image files in
// it. The file list is re-derived on every call; no folder membership is
// persisted.
type FolderScanner interface {
	Scan(folders []string) ([]FileInfo, error)

	// Fingerprint derives the change-detection value for a file.
	Fingerprint(fi FileInfo) (string, error)
}
