package pack

type PackOption func(o *packOptions)

type packOptions struct {
	dryRun       bool
	maxPartBytes int64
	prefix       string
}

func WithDryRun(dryRun bool) PackOption {
	return func(o *packOptions) {
		o.dryRun = dryRun
	}
}

// WithMaxPartBytes caps the uncompressed bytes stored in a single part. An
// asset larger than the cap gets a part of its own. Zero means no cap.
func WithMaxPartBytes(maxPartBytes int64) PackOption {
	return func(o *packOptions) {
		o.maxPartBytes = maxPartBytes
	}
}

// WithPrefix names the pack files. Defaults to DefaultPrefix.
func WithPrefix(prefix string) PackOption {
	return func(o *packOptions) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

type UnpackOption func(o *unpackOptions)

type unpackOptions struct {
	dryRun   bool
	registry EntryUpdater
}

func WithUnpackDryRun(dryRun bool) UnpackOption {
	return func(o *unpackOptions) {
		o.dryRun = dryRun
	}
}

// WithRegistry registers every unpacked asset. The caller persists the
// registry.
func WithRegistry(reg EntryUpdater) UnpackOption {
	return func(o *unpackOptions) {
		o.registry = reg
	}
}
