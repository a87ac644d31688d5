package internal

// Option is a functional option for configuring a run.
type Option func(*application)

type application struct {
	config *Config
	single bool
	dryRun bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithSingle stops the backup pass after the first directory that was
// actually backed up.
func WithSingle(single bool) Option {
	return func(a *application) {
		a.single = single
	}
}

// WithDryRun reports reconciliation decisions without packaging,
// uploading or writing anything.
func WithDryRun(dryRun bool) Option {
	return func(a *application) {
		a.dryRun = dryRun
	}
}
