package entity

import "io"

// UploadFile is the uploaded stream. multipart.File satisfies it.
type UploadFile interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

// UploadRequest carries the form fields of an admin upload together with the file.
type UploadRequest struct {
	SemesterID  string
	BranchID    string
	SubjectID   string
	Title       string
	Description string
	File        UploadFile
	Filename    string // Name declared by the client
}

// ValidatedUpload is an UploadRequest that passed every precondition.
type ValidatedUpload struct {
	*UploadRequest
	SafeFilename string
	Extension    string // Lowercase, without the dot
	Size         int64
}
