package domain

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Kind identifies the category of a failure raised by the plugin core.
type Kind int

const (
	KindUnknown Kind = iota
	KindArchiveNotFound
	KindArchiveCorrupt
	KindMissingManifest
	KindInvalidManifest
	KindMissingScriptsDir
	KindMissingScriptFile
	KindIncompatibleToolVersion
	KindScriptNotFound
	KindCircularDependency
	KindUnresolvedDependencies
	KindPluginAlreadyInstalled
	KindMissingDependency
	KindPluginNotInstalled
	KindRegistryCorrupt
	KindFileOperationFailed
	KindNetworkFailed
)

var kindNames = map[Kind]string{
	KindUnknown:                 "Unknown",
	KindArchiveNotFound:         "ArchiveNotFound",
	KindArchiveCorrupt:          "ArchiveCorrupt",
	KindMissingManifest:         "MissingManifest",
	KindInvalidManifest:         "InvalidManifest",
	KindMissingScriptsDir:       "MissingScriptsDir",
	KindMissingScriptFile:       "MissingScriptFile",
	KindIncompatibleToolVersion: "IncompatibleToolVersion",
	KindScriptNotFound:          "ScriptNotFound",
	KindCircularDependency:      "CircularDependency",
	KindUnresolvedDependencies:  "UnresolvedDependencies",
	KindPluginAlreadyInstalled:  "PluginAlreadyInstalled",
	KindMissingDependency:       "MissingDependency",
	KindPluginNotInstalled:      "PluginNotInstalled",
	KindRegistryCorrupt:         "RegistryCorrupt",
	KindFileOperationFailed:     "FileOperationFailed",
	KindNetworkFailed:           "NetworkFailed",
}

// String implements the Stringer interface
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the single error type returned by the plugin core. Only the
// fields relevant to Kind are populated.
type Error struct {
	Kind Kind

	// Path is the archive, directory or file the failure refers to.
	Path string
	// Op names the filesystem operation for FileOperationFailed.
	Op string
	// File is the manifest-relative script file for MissingScriptFile.
	File string
	// Name is a script name for ScriptNotFound and CircularDependency.
	Name string
	// ID is a plugin id for the registry kinds.
	ID string
	// URL is the remote location for NetworkFailed.
	URL string
	// Required is the minimum tool version for IncompatibleToolVersion.
	Required string
	// Cycle lists the import path that closes on Name.
	Cycle []string
	// Reason is a short human readable detail.
	Reason string
	// Permanent marks a NetworkFailed instance that must not be retried.
	Permanent bool

	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindArchiveNotFound:
		msg = fmt.Sprintf("plugin archive not found: %s", e.Path)
	case KindArchiveCorrupt:
		msg = fmt.Sprintf("plugin archive is corrupt: %s", e.Path)
	case KindMissingManifest:
		msg = fmt.Sprintf("plugin package is missing its manifest: %s", e.Path)
	case KindInvalidManifest:
		msg = "invalid plugin manifest"
	case KindMissingScriptsDir:
		msg = fmt.Sprintf("plugin package is missing its scripts directory: %s", e.Path)
	case KindMissingScriptFile:
		msg = fmt.Sprintf("script file %q not found", e.File)
	case KindIncompatibleToolVersion:
		msg = fmt.Sprintf("plugin requires tool version %s or newer", e.Required)
	case KindScriptNotFound:
		msg = fmt.Sprintf("script not found: %s", e.Name)
	case KindCircularDependency:
		msg = fmt.Sprintf("circular dependency detected involving: %s", e.Name)
		if len(e.Cycle) > 0 {
			msg += " (" + strings.Join(e.Cycle, " -> ") + ")"
		}
	case KindUnresolvedDependencies:
		msg = "failed to resolve all dependencies"
	case KindPluginAlreadyInstalled:
		msg = fmt.Sprintf("plugin %q is already installed", e.ID)
	case KindMissingDependency:
		msg = fmt.Sprintf("missing dependency: %s", e.ID)
	case KindPluginNotInstalled:
		msg = fmt.Sprintf("plugin %q is not installed", e.ID)
	case KindRegistryCorrupt:
		msg = fmt.Sprintf("plugin registry is corrupt: %s", e.Path)
	case KindFileOperationFailed:
		if e.Op != "" {
			msg = fmt.Sprintf("file operation %s failed: %s", e.Op, e.Path)
		} else {
			msg = fmt.Sprintf("file operation failed: %s", e.Path)
		}
	case KindNetworkFailed:
		msg = fmt.Sprintf("network request failed: %s", e.URL)
	default:
		msg = "plugin core error"
	}

	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the Err* sentinels below work
// with errors.Is regardless of the structured fields.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrArchiveNotFound         = &Error{Kind: KindArchiveNotFound}
	ErrArchiveCorrupt          = &Error{Kind: KindArchiveCorrupt}
	ErrMissingManifest         = &Error{Kind: KindMissingManifest}
	ErrInvalidManifest         = &Error{Kind: KindInvalidManifest}
	ErrMissingScriptsDir       = &Error{Kind: KindMissingScriptsDir}
	ErrMissingScriptFile       = &Error{Kind: KindMissingScriptFile}
	ErrIncompatibleToolVersion = &Error{Kind: KindIncompatibleToolVersion}
	ErrScriptNotFound          = &Error{Kind: KindScriptNotFound}
	ErrCircularDependency      = &Error{Kind: KindCircularDependency}
	ErrUnresolvedDependencies  = &Error{Kind: KindUnresolvedDependencies}
	ErrPluginAlreadyInstalled  = &Error{Kind: KindPluginAlreadyInstalled}
	ErrMissingDependency       = &Error{Kind: KindMissingDependency}
	ErrPluginNotInstalled      = &Error{Kind: KindPluginNotInstalled}
	ErrRegistryCorrupt         = &Error{Kind: KindRegistryCorrupt}
	ErrFileOperationFailed     = &Error{Kind: KindFileOperationFailed}
	ErrNetworkFailed           = &Error{Kind: KindNetworkFailed}
)

// ArchiveNotFound creates an error for a missing plugin archive
func ArchiveNotFound(path string, err error) *Error {
	return &Error{Kind: KindArchiveNotFound, Path: path, Err: err}
}

// ArchiveCorrupt creates an error for an archive that cannot be unpacked
func ArchiveCorrupt(path string, err error) *Error {
	return &Error{Kind: KindArchiveCorrupt, Path: path, Err: err}
}

// MissingManifest creates an error for a package without a manifest file
func MissingManifest(path string) *Error {
	return &Error{Kind: KindMissingManifest, Path: path}
}

// InvalidManifest creates an error for a manifest that fails parsing or validation
func InvalidManifest(reason string, err error) *Error {
	return &Error{Kind: KindInvalidManifest, Reason: reason, Err: err}
}

// MissingScriptsDir creates an error for a package without a scripts directory
func MissingScriptsDir(path string) *Error {
	return &Error{Kind: KindMissingScriptsDir, Path: path}
}

// MissingScriptFile creates an error naming a declared but absent script file
func MissingScriptFile(file string) *Error {
	return &Error{Kind: KindMissingScriptFile, File: file}
}

// IncompatibleToolVersion creates an error for a plugin that needs a newer tool
func IncompatibleToolVersion(required, current string) *Error {
	return &Error{Kind: KindIncompatibleToolVersion, Required: required, Reason: "running " + current}
}

// ScriptNotFound creates an error for a script that no source can provide
func ScriptNotFound(name string) *Error {
	return &Error{Kind: KindScriptNotFound, Name: name}
}

// CircularDependency creates an error for an import cycle through node
func CircularDependency(node string, cycle []string) *Error {
	return &Error{Kind: KindCircularDependency, Name: node, Cycle: cycle}
}

// UnresolvedDependencies creates an error for an incomplete topological order
func UnresolvedDependencies(missing []string) *Error {
	e := &Error{Kind: KindUnresolvedDependencies}
	if len(missing) > 0 {
		e.Reason = strings.Join(missing, ", ")
	}
	return e
}

// PluginAlreadyInstalled creates an error for a duplicate install
func PluginAlreadyInstalled(id string) *Error {
	return &Error{Kind: KindPluginAlreadyInstalled, ID: id}
}

// MissingDependency creates an error for a dependency absent from the registry
func MissingDependency(id string) *Error {
	return &Error{Kind: KindMissingDependency, ID: id}
}

// PluginNotInstalled creates an error for an unknown plugin id
func PluginNotInstalled(id string) *Error {
	return &Error{Kind: KindPluginNotInstalled, ID: id}
}

// RegistryCorrupt creates an error for an unreadable registry document
func RegistryCorrupt(path string, err error) *Error {
	return &Error{Kind: KindRegistryCorrupt, Path: path, Err: err}
}

// FileOperationFailed creates an error for a failed filesystem operation
func FileOperationFailed(op, path string, err error) *Error {
	return &Error{Kind: KindFileOperationFailed, Op: op, Path: path, Err: err}
}

// NetworkFailed creates an error for a failed remote request
func NetworkFailed(url string, err error) *Error {
	return &Error{Kind: KindNetworkFailed, URL: url, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRecoverable reports whether err is a transient failure worth retrying.
func IsRecoverable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindNetworkFailed:
		return !e.Permanent
	case KindFileOperationFailed:
		return true
	default:
		return false
	}
}

// IsMissingFile reports whether err is a FileOperationFailed caused by a
// path that does not exist, returning that path.
func IsMissingFile(err error) (string, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindFileOperationFailed {
		return "", false
	}
	if !errors.Is(e.Err, fs.ErrNotExist) || e.Path == "" {
		return "", false
	}
	return e.Path, true
}
