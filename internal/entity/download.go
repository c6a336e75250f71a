package entity

// Download is an authorized retrieval of a stored material.
type Download struct {
	PublicPath string // Path as requested, e.g. /data/notes/semester-1/cse/ds/notes-01.pdf
	FilePath   string // Resolved location on the storage filesystem
	Name       string // Attachment file name
	Size       int64
	Counter    int64 // Download counter after this request, 0 when not counted
}
