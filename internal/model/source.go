package model

// Path represents a file system path.
type Path string

// File represents a scanned source file together with a cheap content
// fingerprint used to detect changes between analysis passes.
type File struct {
	Path        Path
	Fingerprint string
}

// FileReport holds the purity-analysis output for a single source file.
// One report is produced per parseable file per scan; files that fail to
// parse produce no report at all.
type FileReport struct {
	File           File
	Candidates     []PureFunctionCandidate
	ExistingCaches []ExistingCacheCandidate
}
