package filemanager

import (
	"fmt"
	"strings"
)

// VirtualPath is a path relative to a mount point, written
// $MountName/relative/path. Separators are normalised to '/' when parsing.
type VirtualPath struct {
	// Mount is the mount point name including the leading '$'.
	Mount string
	// Rel is slash separated and empty for the mount root.
	Rel string
}

// ParseVirtualPath accepts '/' and '\' as separators and rejects empty, "."
// and ".." segments.
func ParseVirtualPath(s string) (VirtualPath, error) {
	if !strings.HasPrefix(s, "$") {
		return VirtualPath{}, fmt.Errorf("%w: %q has no mount prefix", ErrInvalidVirtualPath, s)
	}

	s = strings.ReplaceAll(s, `\`, "/")
	s = strings.TrimSuffix(s, "/")

	mount, rel, _ := strings.Cut(s, "/")
	if !validMountName(mount) {
		return VirtualPath{}, fmt.Errorf("%w: bad mount name %q", ErrInvalidVirtualPath, mount)
	}
	if rel != "" {
		for _, seg := range strings.Split(rel, "/") {
			if seg == "" || seg == "." || seg == ".." {
				return VirtualPath{}, fmt.Errorf("%w: bad segment in %q", ErrInvalidVirtualPath, s)
			}
		}
	}

	return VirtualPath{Mount: mount, Rel: rel}, nil
}

func (v VirtualPath) String() string {
	if v.Rel == "" {
		return v.Mount
	}
	return v.Mount + "/" + v.Rel
}

func (v VirtualPath) IsZero() bool {
	return v.Mount == ""
}

func validMountName(name string) bool {
	if len(name) < 2 || name[0] != '$' {
		return false
	}
	return !strings.ContainsAny(name[1:], `/\$:`) && strings.TrimSpace(name) == name
}
