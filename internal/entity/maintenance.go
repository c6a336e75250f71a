package entity

// SweepReport summarizes one maintenance sweep.
type SweepReport struct {
	Thumbnails   int      `json:"thumbnails" yaml:"thumbnails"`      // Orphan thumbnails deleted
	Counters     int      `json:"counters" yaml:"counters"`          // Counters of unknown materials dropped
	OrphanFiles  []string `json:"orphanFiles" yaml:"orphan_files"`   // Stored files no material refers to
	FilesRemoved bool     `json:"filesRemoved" yaml:"files_removed"` // True when OrphanFiles were deleted
}
