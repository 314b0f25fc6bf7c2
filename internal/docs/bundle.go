package docs

import (
	"bytes"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/mind-engage/reshuffle/internal/taskbank"
	"github.com/mind-engage/reshuffle/internal/variant"
)

// Bundle is a fully rendered batch held in memory.
type Bundle struct {
	Document   variant.Document
	Subject    taskbank.Subject
	Sheets     map[string][]byte // unique key -> PNG
	TasksPDF   []byte
	AnswersPDF []byte
}

type File struct {
	Name string
	Body []byte
}

// Files lists the archive members in a stable order.
func (b *Bundle) Files() ([]File, error) {
	var data bytes.Buffer
	if err := b.Document.Encode(&data); err != nil {
		return nil, fmt.Errorf("encode %s: %w", DataFile, err)
	}
	files := []File{
		{Name: DataFile, Body: data.Bytes()},
		{Name: TasksFile, Body: b.TasksPDF},
		{Name: AnswersFile, Body: b.AnswersPDF},
	}
	keys := make([]string, 0, len(b.Sheets))
	for k := range b.Sheets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		files = append(files, File{Name: SheetsDir + "/" + k + ".png", Body: b.Sheets[k]})
	}
	return files, nil
}

// Zip compresses files into one archive. PNG and PDF members are stored as-is.
func Zip(files []File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()
	for _, f := range files {
		h := &zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: now}
		switch path.Ext(f.Name) {
		case ".png", ".pdf":
			h.Method = zip.Store
		}
		w, err := zw.CreateHeader(h)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(f.Body); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
