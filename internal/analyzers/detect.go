package analyzers

import (
	"bytes"
	"io"
	"os"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"pkgdepend/internal/types"
)

// sniffLimit is how much of a payload is read to classify it.
const sniffLimit = 3072

// Labels reported for payload types.
const (
	LabelELF        = "ELF"
	LabelExecutable = "executable"
	LabelSMF        = "SMF manifest"
	LabelXML        = "XML"
	LabelText       = "text"
	LabelData       = "data"
)

var (
	elfMagic = []byte{0x7f, 'E', 'L', 'F'}
	utf8BOM  = []byte{0xef, 0xbb, 0xbf}
)

// Classify sniffs a payload's type from its content. For files no
// analyzer handles, label names the kind of content for reporting.
func Classify(localPath string) (types.FileType, string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to open payload " + localPath).
			WithCause(err)
	}
	defer f.Close()
	head := make([]byte, sniffLimit)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read payload " + localPath).
			WithCause(err)
	}
	head = head[:n]
	switch {
	case bytes.HasPrefix(head, elfMagic):
		return types.FileTypeELF, LabelELF, nil
	case bytes.HasPrefix(head, []byte("#!")):
		return types.FileTypeExec, LabelExecutable, nil
	case isXML(head):
		if isSMFManifest(f) {
			return types.FileTypeSMF, LabelSMF, nil
		}
		return types.FileTypeUnknown, LabelXML, nil
	case isText(head, n == sniffLimit):
		return types.FileTypeUnknown, LabelText, nil
	default:
		return types.FileTypeUnknown, LabelData, nil
	}
}

func isXML(head []byte) bool {
	head = bytes.TrimLeft(bytes.TrimPrefix(head, utf8BOM), " \t\r\n")
	return bytes.HasPrefix(head, []byte("<?xml"))
}

// isText reports whether head is UTF-8 without NUL bytes. A truncated
// head may end inside a multi-byte rune.
func isText(head []byte, truncated bool) bool {
	if bytes.IndexByte(head, 0) > -1 {
		return false
	}
	if truncated {
		for i := 0; i < utf8.UTFMax && len(head) > 0 && !utf8.Valid(head); i++ {
			head = head[:len(head)-1]
		}
	}
	return utf8.Valid(head)
}

func isSMFManifest(f *os.File) bool {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false
	}
	_, ok := ParseSMFManifest(f)
	return ok
}
