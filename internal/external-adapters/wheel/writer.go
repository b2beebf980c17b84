package wheel

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ochairo/redist/internal/domain/entities"
)

// File modes inside the archive
const (
	ExecutableMode fs.FileMode = 0o755
	RegularMode    fs.FileMode = 0o644
)

// epoch is the fixed member timestamp. Zip stores DOS times that cannot
// predate 1980, and a constant timestamp keeps wheel bytes identical across
// runs.
var epoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Member is one file to be written into a wheel
type Member struct {
	Path string
	Data []byte
	Mode fs.FileMode
}

// Writer writes reproducible wheel archives
type Writer struct{}

// NewWriter creates a new wheel writer
func NewWriter() *Writer {
	return &Writer{}
}

// WriteWheel writes the given members plus a generated RECORD to path.
// Member order is preserved; running twice with the same members produces
// byte-identical output.
func (w *Writer) WriteWheel(path string, layout entities.PackageLayout, members []Member) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wheel %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close wheel %s: %w", path, closeErr)
		}
	}()

	zw := zip.NewWriter(f)

	var record strings.Builder
	for _, member := range members {
		if err := writeMember(zw, member); err != nil {
			return fmt.Errorf("failed to write member %s: %w", member.Path, err)
		}
		digest := sha256.Sum256(member.Data)
		fmt.Fprintf(&record, "%s,sha256=%s,%d\n",
			member.Path, base64.RawURLEncoding.EncodeToString(digest[:]), len(member.Data))
	}

	// RECORD lists itself last with empty digest and size fields
	recordPath := layout.DistInfoDir() + "/RECORD"
	fmt.Fprintf(&record, "%s,,\n", recordPath)
	if err := writeMember(zw, Member{Path: recordPath, Data: []byte(record.String()), Mode: RegularMode}); err != nil {
		return fmt.Errorf("failed to write RECORD: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize wheel %s: %w", path, err)
	}

	return nil
}

func writeMember(zw *zip.Writer, member Member) error {
	fh := &zip.FileHeader{
		Name:     member.Path,
		Method:   zip.Deflate,
		Modified: epoch,
	}
	fh.SetMode(member.Mode)

	mw, err := zw.CreateHeader(fh)
	if err != nil {
		return err
	}
	if _, err := mw.Write(member.Data); err != nil {
		return err
	}

	return nil
}
