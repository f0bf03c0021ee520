// Package metafile reads and writes the sidecar stored next to every source
// asset. The sidecar keeps the UUIDs of everything produced from the source
// file so that references to those UUIDs survive re-imports.
//
// A File is a transient value: load it, use it from one goroutine, save it.
package metafile

import (
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/asset"
	"github.com/stupid-simple/assetpipe/fileutils"
)

// CurrentVersion is the sidecar schema version written by Save. Sidecars with
// a lower version are considered outdated.
const CurrentVersion uint32 = 1

// EntryUpdater receives every subasset of a sidecar when it is saved.
type EntryUpdater interface {
	UpdateEntry(path, identifier, displayName, address string, uuid asset.UUID, assetType asset.Type)
}

type Subasset struct {
	Identifier  string
	DisplayName string
	Address     string
	Type        asset.Type
	UUID        asset.UUID
}

func (s Subasset) matches(name string, assetType asset.Type) bool {
	return s.Identifier == name && s.Type == assetType
}

func (s Subasset) MarshalZerologObject(e *zerolog.Event) {
	e.Str("identifier", s.Identifier)
	e.Stringer("type", s.Type)
	e.Stringer("uuid", s.UUID)
	if s.DisplayName != s.Identifier {
		e.Str("display_name", s.DisplayName)
	}
}

type File struct {
	path        string
	metaPath    string
	mountedPath string

	exists          bool
	valid           bool
	dirty           bool
	settingsDirty   bool
	metaVersion     uint32
	importerVersion uint32

	defaultSubasset Subasset
	subassets       []Subasset
	settings        map[string]string
}

type document struct {
	AssetImporterVersion uint32            `json:"assetImporterVersion"`
	MetaFileVersion      uint32            `json:"metaFileVersion"`
	DefaultUUID          string            `json:"defaultUuid,omitempty"`
	Subassets            []subassetRecord  `json:"subassets"`
	ImporterSettings     map[string]string `json:"importerSettings"`
}

type subassetRecord struct {
	DisplayName string     `json:"displayName,omitempty"`
	Address     string     `json:"address,omitempty"`
	Identifier  string     `json:"subassetIdentifier"`
	UUID        string     `json:"uuid"`
	Type        asset.Type `json:"type"`
}

// Load reads the sidecar of the source file at path. mountedPath is the
// virtual path of the source file; it is used for default addresses and for
// registry entries, and may be empty.
//
// A missing or unparsable sidecar yields an empty file that is valid but
// outdated, which makes the source file stale.
func Load(path, mountedPath string) *File {
	f := &File{
		path:        path,
		metaPath:    asset.MetaPath(path),
		mountedPath: mountedPath,
		valid:       true,
		settings:    map[string]string{},
	}

	raw, err := os.ReadFile(f.metaPath)
	if err != nil {
		return f
	}

	doc := document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return f
	}

	f.exists = true
	f.metaVersion = doc.MetaFileVersion
	f.importerVersion = doc.AssetImporterVersion

	defaultUUID, _ := asset.ParseUUID(doc.DefaultUUID)

	for _, rec := range doc.Subassets {
		if rec.Identifier == "" || rec.UUID == "" {
			f.valid = false
			continue
		}

		uuid, err := asset.ParseUUID(rec.UUID)
		if err != nil {
			continue
		}

		sub := Subasset{
			Identifier:  rec.Identifier,
			DisplayName: rec.DisplayName,
			Address:     rec.Address,
			Type:        rec.Type,
			UUID:        uuid,
		}
		if sub.DisplayName == "" {
			sub.DisplayName = sub.Identifier
		}

		if defaultUUID.IsValid() && uuid == defaultUUID {
			f.defaultSubasset = sub
		} else {
			f.subassets = append(f.subassets, sub)
		}
	}

	for k, v := range doc.ImporterSettings {
		f.settings[k] = v
	}

	return f
}

func (f *File) Path() string        { return f.path }
func (f *File) MetaPath() string    { return f.metaPath }
func (f *File) MountedPath() string { return f.mountedPath }

// Exists reports whether a parsable sidecar was found by Load or written by
// Save.
func (f *File) Exists() bool { return f.exists }

func (f *File) MetaVersion() uint32     { return f.metaVersion }
func (f *File) ImporterVersion() uint32 { return f.importerVersion }

func (f *File) IsValid() bool {
	return f.valid
}

func (f *File) IsOutdatedMetaVersion() bool {
	return f.metaVersion < CurrentVersion
}

// IsOutdatedImporterVersion reports whether the sidecar was written by a
// different importer version. Downgrades count as outdated too, and so does an
// importer reporting version 0.
func (f *File) IsOutdatedImporterVersion(current uint32) bool {
	return current == 0 || f.importerVersion != current
}

// GetOrCreateSubassetUUID returns the UUID of the subasset with the given name
// and type, allocating a new one when the pair is unknown.
func (f *File) GetOrCreateSubassetUUID(name string, assetType asset.Type) asset.UUID {
	if f.defaultSubasset.UUID.IsValid() && f.defaultSubasset.matches(name, assetType) {
		return f.defaultSubasset.UUID
	}
	if i := f.indexOf(name, assetType); i >= 0 {
		return f.subassets[i].UUID
	}

	sub := f.newSubasset(name, assetType)
	f.subassets = append(f.subassets, sub)
	f.dirty = true
	return sub.UUID
}

// GetOrCreateDefaultSubassetUUID is GetOrCreateSubassetUUID for the default
// subasset, the one representing the source file itself.
//
// An existing default keeps its UUID when the name or type changes, e.g.
// after the source file was renamed. A regular subasset with the same name and
// type is promoted instead, and the previous default becomes a regular
// subasset; both keep their UUIDs.
func (f *File) GetOrCreateDefaultSubassetUUID(name string, assetType asset.Type) asset.UUID {
	if f.defaultSubasset.UUID.IsValid() && f.defaultSubasset.matches(name, assetType) {
		return f.defaultSubasset.UUID
	}

	f.dirty = true
	if i := f.indexOf(name, assetType); i >= 0 {
		promoted := f.subassets[i]
		if f.defaultSubasset.UUID.IsValid() {
			f.subassets[i] = f.defaultSubasset
		} else {
			f.subassets = slices.Delete(f.subassets, i, i+1)
		}
		f.defaultSubasset = promoted
		return f.defaultSubasset.UUID
	}

	if !f.defaultSubasset.UUID.IsValid() {
		f.defaultSubasset = f.newSubasset(name, assetType)
		return f.defaultSubasset.UUID
	}

	d := &f.defaultSubasset
	if d.DisplayName == "" || d.DisplayName == d.Identifier {
		d.DisplayName = name
	}
	if d.Address == "" || strings.HasSuffix(d.Address, ":"+d.Identifier) {
		d.Address = f.defaultAddress(name)
	}
	d.Identifier = name
	d.Type = assetType
	return d.UUID
}

func (f *File) TryGetDefaultSubasset() (Subasset, bool) {
	if !f.defaultSubasset.UUID.IsValid() {
		return Subasset{}, false
	}
	return f.defaultSubasset, true
}

func (f *File) TryGetDefaultSubassetUUID() (asset.UUID, bool) {
	if !f.defaultSubasset.UUID.IsValid() {
		return asset.NilUUID, false
	}
	return f.defaultSubasset.UUID, true
}

// TryGetSubasset finds a subasset, the default one included, by identifier.
func (f *File) TryGetSubasset(name string) (Subasset, bool) {
	if f.defaultSubasset.UUID.IsValid() && f.defaultSubasset.Identifier == name {
		return f.defaultSubasset, true
	}
	for _, sub := range f.subassets {
		if sub.Identifier == name {
			return sub, true
		}
	}
	return Subasset{}, false
}

func (f *File) TryGetSubassetByUUID(uuid asset.UUID) (Subasset, bool) {
	if !uuid.IsValid() {
		return Subasset{}, false
	}
	if f.defaultSubasset.UUID == uuid {
		return f.defaultSubasset, true
	}
	for _, sub := range f.subassets {
		if sub.UUID == uuid {
			return sub, true
		}
	}
	return Subasset{}, false
}

// Subassets yields every subasset except the default one, in declaration
// order.
func (f *File) Subassets() iter.Seq[Subasset] {
	return func(yield func(Subasset) bool) {
		for _, sub := range f.subassets {
			if !yield(sub) {
				return
			}
		}
	}
}

func (f *File) SubassetCount() int {
	return len(f.subassets)
}

// UUIDs returns the default subasset UUID, if any, followed by every other
// subasset UUID.
func (f *File) UUIDs() []asset.UUID {
	out := make([]asset.UUID, 0, len(f.subassets)+1)
	if f.defaultSubasset.UUID.IsValid() {
		out = append(out, f.defaultSubasset.UUID)
	}
	for _, sub := range f.subassets {
		out = append(out, sub.UUID)
	}
	return out
}

func (f *File) Setting(key string) (string, bool) {
	v, ok := f.settings[key]
	return v, ok
}

func (f *File) SetSetting(key, value string) {
	if old, ok := f.settings[key]; ok && old == value {
		return
	}
	f.settings[key] = value
	f.settingsDirty = true
}

// ImporterSettings returns a copy of the free-form importer settings.
func (f *File) ImporterSettings() map[string]string {
	out := make(map[string]string, len(f.settings))
	for k, v := range f.settings {
		out[k] = v
	}
	return out
}

// Save stamps the current versions and writes the sidecar. Every subasset is
// pushed to reg, default first, even when the sidecar itself is unchanged and
// not rewritten. reg is left alone when the write fails.
func (f *File) Save(reg EntryUpdater, importerVersion uint32) error {
	if f.exists &&
		f.valid &&
		!f.dirty &&
		!f.settingsDirty &&
		f.importerVersion == importerVersion &&
		f.metaVersion == CurrentVersion {
		f.updateEntries(reg)
		return nil
	}

	doc := document{
		AssetImporterVersion: importerVersion,
		MetaFileVersion:      CurrentVersion,
		Subassets:            make([]subassetRecord, 0, len(f.subassets)+1),
		ImporterSettings:     f.settings,
	}
	if f.defaultSubasset.UUID.IsValid() {
		doc.DefaultUUID = f.defaultSubasset.UUID.String()
		doc.Subassets = append(doc.Subassets, toRecord(f.defaultSubasset))
	}
	for _, sub := range f.subassets {
		doc.Subassets = append(doc.Subassets, toRecord(sub))
	}

	raw, err := json.MarshalIndent(doc, "", "\t")
	if err != nil {
		return fmt.Errorf("encode meta file %s: %w", f.metaPath, err)
	}
	if err := fileutils.WriteFileAtomic(f.metaPath, raw, 0644); err != nil {
		return fmt.Errorf("write meta file %s: %w", f.metaPath, err)
	}

	f.exists = true
	f.valid = true
	f.dirty = false
	f.settingsDirty = false
	f.metaVersion = CurrentVersion
	f.importerVersion = importerVersion
	f.updateEntries(reg)
	return nil
}

// SaveWithoutImporterVersionChange saves the sidecar keeping the importer
// version it was loaded with.
func (f *File) SaveWithoutImporterVersionChange(reg EntryUpdater) error {
	return f.Save(reg, f.importerVersion)
}

func (f *File) updateEntries(reg EntryUpdater) {
	if reg == nil {
		return
	}
	entryPath := f.mountedPath
	if entryPath == "" {
		entryPath = f.path
	}
	if f.defaultSubasset.UUID.IsValid() {
		d := f.defaultSubasset
		reg.UpdateEntry(entryPath, d.Identifier, d.DisplayName, d.Address, d.UUID, d.Type)
	}
	for _, s := range f.subassets {
		reg.UpdateEntry(entryPath, s.Identifier, s.DisplayName, s.Address, s.UUID, s.Type)
	}
}

func (f *File) indexOf(name string, assetType asset.Type) int {
	return slices.IndexFunc(f.subassets, func(s Subasset) bool {
		return s.matches(name, assetType)
	})
}

func (f *File) newSubasset(name string, assetType asset.Type) Subasset {
	return Subasset{
		Identifier:  name,
		DisplayName: name,
		Address:     f.defaultAddress(name),
		Type:        assetType,
		UUID:        asset.NewUUID(),
	}
}

func (f *File) defaultAddress(name string) string {
	base := f.mountedPath
	if base == "" {
		base = f.path
	}
	return base + ":" + name
}

func toRecord(s Subasset) subassetRecord {
	return subassetRecord{
		DisplayName: s.DisplayName,
		Address:     s.Address,
		Identifier:  s.Identifier,
		UUID:        s.UUID.String(),
		Type:        s.Type,
	}
}
