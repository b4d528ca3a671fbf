package frame

// SourceKind tells how a source image reference is resolved.
type SourceKind string

const (
	SourceFolder SourceKind = "folder"
	SourceFile   SourceKind = "file"
)

// SourceRef points at the image the overlay is drawn on. Folder refs are
// re-randomized on every resolution.
type SourceRef struct {
	Kind SourceKind
	// Name is the folder name under the media root (folder refs) or the file
	// path, absolute or media-root relative (file refs).
	Name string
}

// Folder returns a folder-mode reference.
func Folder(name string) SourceRef {
	return SourceRef{Kind: SourceFolder, Name: name}
}

// File returns a file-mode reference.
func File(path string) SourceRef {
	return SourceRef{Kind: SourceFile, Name: path}
}

func (r SourceRef) String() string {
	return string(r.Kind) + ":" + r.Name
}
