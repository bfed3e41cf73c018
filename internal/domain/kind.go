package domain

import (
	"path/filepath"
	"strings"
)

// Format is the container family of an image file.
type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
	FormatWebP
	FormatTIFF
	FormatSidecar
)

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	case FormatTIFF:
		return "tiff"
	case FormatSidecar:
		return "sidecar"
	default:
		return "unknown"
	}
}

// ContainerKind classifies a file. Subtype is set for sidecar-only kinds and
// holds the lower-case extension without the dot (e.g. "cr3", "heic").
type ContainerKind struct {
	Format  Format
	Subtype string
}

func (k ContainerKind) IsSidecar() bool {
	return k.Format == FormatSidecar
}

func (k ContainerKind) String() string {
	if k.IsSidecar() && k.Subtype != "" {
		return "sidecar(" + k.Subtype + ")"
	}
	return k.Format.String()
}

// MarshalText renders the kind the way String does, e.g. in JSON output.
func (k ContainerKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

var (
	JPEG = ContainerKind{Format: FormatJPEG}
	PNG  = ContainerKind{Format: FormatPNG}
	WebP = ContainerKind{Format: FormatWebP}
	TIFF = ContainerKind{Format: FormatTIFF}
)

func Sidecar(subtype string) ContainerKind {
	return ContainerKind{Format: FormatSidecar, Subtype: subtype}
}

func normalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(ext), ".")
}

// NativeFormat returns the natively writable format for an extension.
func NativeFormat(ext string) (Format, bool) {
	switch normalizeExt(ext) {
	case "jpg", "jpeg":
		return FormatJPEG, true
	case "png":
		return FormatPNG, true
	case "webp":
		return FormatWebP, true
	case "tif", "tiff":
		return FormatTIFF, true
	default:
		return FormatUnknown, false
	}
}

// IsSidecarExtension reports extensions that only receive an XMP sidecar.
func IsSidecarExtension(ext string) bool {
	switch normalizeExt(ext) {
	case "heic", "heif", "avif",
		"cr3", "cr2", "dng", "nef", "arw", "raf", "orf", "rw2", "pef", "srw":
		return true
	default:
		return false
	}
}

// IsRawExtension reports camera RAW extensions, which wrap a TIFF-like structure.
func IsRawExtension(ext string) bool {
	switch normalizeExt(ext) {
	case "cr3", "cr2", "dng", "nef", "arw", "raf", "orf", "rw2", "pef", "srw":
		return true
	default:
		return false
	}
}

func IsSupportedExtension(ext string) bool {
	if _, ok := NativeFormat(ext); ok {
		return true
	}
	return IsSidecarExtension(ext)
}

// MimeType maps a path to the MIME type sent to AI backends.
func MimeType(path string) string {
	switch normalizeExt(filepath.Ext(path)) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "tif", "tiff":
		return "image/tiff"
	case "heic":
		return "image/heic"
	case "heif":
		return "image/heif"
	case "avif":
		return "image/avif"
	case "cr2":
		return "image/x-canon-cr2"
	case "cr3":
		return "image/x-canon-cr3"
	case "dng":
		return "image/x-adobe-dng"
	case "nef":
		return "image/x-nikon-nef"
	case "arw":
		return "image/x-sony-arw"
	case "raf":
		return "image/x-fuji-raf"
	case "orf":
		return "image/x-olympus-orf"
	case "rw2":
		return "image/x-panasonic-rw2"
	case "pef":
		return "image/x-pentax-pef"
	case "srw":
		return "image/x-samsung-srw"
	default:
		return "image/jpeg"
	}
}

// SidecarPath returns <dir>/<basename>.xmp for an image path.
func SidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".xmp"
}

// BackupPath returns <path>.bak, i.e. photo.jpg -> photo.jpg.bak.
func BackupPath(path string) string {
	return path + ".bak"
}
