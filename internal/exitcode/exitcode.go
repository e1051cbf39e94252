package exitcode

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2
	DBConnError     = 3
	IngestError     = 4
	ServeError      = 5
	PartialSuccess  = 6
)
