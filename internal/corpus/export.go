package corpus

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/turtacn/deckscan/pkg/errors"
)

// List file names written by Export.
const (
	EntitiesFile = "entities.txt"
	KeywordsFile = "keywords.txt"
	ExtraFile    = "extra.txt"
)

// WriteLines writes one name per line.
func WriteLines(w io.Writer, names []string) error {
	bw := bufio.NewWriter(w)
	for _, n := range names {
		if _, err := bw.WriteString(n + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Encode renders names in the plain list format.
func Encode(names []string) []byte {
	var buf bytes.Buffer
	_ = WriteLines(&buf, names)
	return buf.Bytes()
}

// Export writes the corpus lists into dir as plain list files and returns the
// paths written. Empty lists are skipped.
func Export(c *Corpus, dir string) (map[Kind]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create corpus directory").WithDetail(dir)
	}
	out := make(map[Kind]string, 3)
	for kind, list := range map[Kind]struct {
		file  string
		names []string
	}{
		KindEntities: {EntitiesFile, c.Entities},
		KindKeywords: {KeywordsFile, c.Keywords},
		KindExtra:    {ExtraFile, c.Extra},
	} {
		if len(list.names) == 0 {
			continue
		}
		path := filepath.Join(dir, list.file)
		if err := os.WriteFile(path, Encode(list.names), 0o644); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to write corpus file").WithDetail(path)
		}
		out[kind] = path
	}
	return out, nil
}
