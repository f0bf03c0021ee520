package config

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
)

const (
	DefaultMountName   = "$MAIN"
	DefaultJournalName = "importJournal.sqlite"
)

type Config struct {
	ProjectPath  string        `json:"project_path"`
	Mounts       []Mount       `json:"mounts,omitempty"`
	Workers      int           `json:"workers,omitempty"`
	RawImporters []RawImporter `json:"raw_importers,omitempty"`
	Journal      Journal       `json:"journal"`
	Cleanup      Cleanup       `json:"cleanup"`
	Pack         Pack          `json:"pack"`
}

type Mount struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (m Mount) MarshalZerologObject(e *zerolog.Event) {
	e.Str("name", m.Name)
	e.Str("path", m.Path)
}

// RawImporter binds an extension to the pass-through importer.
type RawImporter struct {
	Extension string `json:"extension"`
	Type      string `json:"type"`
	Version   uint32 `json:"version,omitempty"`
}

type Journal struct {
	Path      string           `json:"path,omitempty"`
	Disable   bool             `json:"disable,omitempty"`
	Retention DurationArgument `json:"retention,omitempty"`
	Schedule  string           `json:"prune_cron,omitempty"`
}

type Cleanup struct {
	Schedule string `json:"cron,omitempty"`
}

type Pack struct {
	Dir         string       `json:"dir,omitempty"`
	Prefix      string       `json:"prefix,omitempty"`
	MaxPartSize SizeArgument `json:"max_part_size,omitempty"`
}

func (c *Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("project_path", c.ProjectPath)
	arr := zerolog.Arr()
	for _, m := range c.Mounts {
		arr.Object(m)
	}
	e.Array("mounts", arr)
	e.Int("workers", c.Workers)

	if !c.Journal.Disable {
		e.Str("journal", c.Journal.Path)
	}
	if c.Journal.Schedule != "" {
		e.Str("journal_prune_cron", c.Journal.Schedule)
		e.Dur("journal_retention", c.Journal.Retention.Duration)
	}
	if c.Cleanup.Schedule != "" {
		e.Str("cleanup_cron", c.Cleanup.Schedule)
	}
	if c.Pack.MaxPartSize.Size > 0 {
		e.Int64("pack_max_part_size", c.Pack.MaxPartSize.Size)
	}
}

// resolve fills defaults and makes every path absolute. Relative paths are
// taken relative to base.
func (c *Config) resolve(base string) error {
	if c.ProjectPath == "" {
		return fmt.Errorf("project_path is required")
	}
	c.ProjectPath = absFrom(base, c.ProjectPath)

	if len(c.Mounts) == 0 {
		c.Mounts = []Mount{{Name: DefaultMountName, Path: "assets"}}
	}
	for i := range c.Mounts {
		if c.Mounts[i].Name == "" || c.Mounts[i].Path == "" {
			return fmt.Errorf("mount %d: name and path are required", i)
		}
		c.Mounts[i].Path = absFrom(c.ProjectPath, c.Mounts[i].Path)
	}

	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}

	for i, imp := range c.RawImporters {
		if imp.Extension == "" || imp.Type == "" {
			return fmt.Errorf("raw importer %d: extension and type are required", i)
		}
		if imp.Version == 0 {
			c.RawImporters[i].Version = 1
		}
	}

	if c.Journal.Path == "" {
		c.Journal.Path = DefaultJournalName
	}
	c.Journal.Path = absFrom(c.ProjectPath, c.Journal.Path)

	if c.Pack.Dir != "" {
		c.Pack.Dir = absFrom(c.ProjectPath, c.Pack.Dir)
	}
	return nil
}

func absFrom(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
