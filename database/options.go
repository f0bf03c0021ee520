package database

type findImportRunsOptions struct {
	limit      int
	onlyFailed bool
	path       string
}

type FindImportRunsOptions func(*findImportRunsOptions)

// Limit the number of runs returned.
func WithFindImportRunsLimit(limit int) FindImportRunsOptions {
	return func(o *findImportRunsOptions) {
		o.limit = limit
	}
}

// Return only runs that finished with an error.
func WithFindImportRunsOnlyFailed() FindImportRunsOptions {
	return func(o *findImportRunsOptions) {
		o.onlyFailed = true
	}
}

// Return only runs of one source file.
func WithFindImportRunsPath(path string) FindImportRunsOptions {
	return func(o *findImportRunsOptions) {
		o.path = path
	}
}
