package parser

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

var extensionKinds = map[string]models.FileKind{
	".csv":  models.FileTabular,
	".tsv":  models.FileTabular,
	".txt":  models.FileTabular,
	".ofx":  models.FileTag,
	".qfx":  models.FileTag,
	".pdf":  models.FilePDF,
	".png":  models.FileImage,
	".jpg":  models.FileImage,
	".jpeg": models.FileImage,
	".gif":  models.FileImage,
	".webp": models.FileImage,
	".heic": models.FileImage,
	".xls":  models.FileUnsupported,
	".xlsx": models.FileUnsupported,
	".zip":  models.FileUnsupported,
}

var signatures = []struct {
	prefix []byte
	kind   models.FileKind
}{
	{[]byte("%PDF"), models.FilePDF},
	{[]byte("\x89PNG\r\n\x1a\n"), models.FileImage},
	{[]byte{0xFF, 0xD8}, models.FileImage},
	{[]byte("GIF87a"), models.FileImage},
	{[]byte("GIF89a"), models.FileImage},
	{[]byte("PK\x03\x04"), models.FileUnsupported},
	{[]byte{0xD0, 0xCF, 0x11, 0xE0}, models.FileUnsupported},
}

// ofxSniffBytes bounds how much of the file is searched for OFX markers.
const ofxSniffBytes = 1000

// Classify decides which sub-parser applies to a file. The extension wins,
// then binary signatures, then OFX header markers; anything else is treated
// as delimited text.
func Classify(filename string, content []byte) models.FileKind {
	ext := strings.ToLower(filepath.Ext(filename))
	if kind, ok := extensionKinds[ext]; ok {
		return kind
	}

	for _, sig := range signatures {
		if bytes.HasPrefix(content, sig.prefix) {
			return sig.kind
		}
	}
	if isWebP(content) {
		return models.FileImage
	}

	sample := content
	if len(sample) > ofxSniffBytes {
		sample = sample[:ofxSniffBytes]
	}
	upper := strings.ToUpper(string(sample))
	if strings.Contains(upper, "<OFX>") || strings.Contains(upper, "OFXHEADER") {
		return models.FileTag
	}

	return models.FileTabular
}

func isWebP(content []byte) bool {
	return len(content) >= 12 &&
		bytes.Equal(content[:4], []byte("RIFF")) &&
		bytes.Equal(content[8:12], []byte("WEBP"))
}
