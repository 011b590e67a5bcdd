package classfile

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"github.com/bytecast/jtc/internal/jtcerr"
	"github.com/bytecast/jtc/internal/model"
)

// classBlob is one discovered .class member, named for diagnostics.
type classBlob struct {
	origin string // path or "archive!member" for diagnostics
	data   []byte
}

// InputWalker discovers every .class member reachable from a set of input
// roots. Each root may be a directory, a single .class file, or a zip-format
// archive (jar or jmod); a single file counts as an archive when its content
// sniffs as zip or its name ends in .jar/.jmod (spec.md §4.1: "Accept
// directories, jar/jmod-style zip archives, or a bare list of .class files").
type InputWalker struct {
	Roots []string
	Log   *logrus.Logger
}

// Walk returns every discovered class blob, sorted by origin for
// deterministic ingest ordering.
func (w *InputWalker) Walk() ([]classBlob, error) {
	var blobs []classBlob
	for _, root := range w.Roots {
		found, err := w.walkRoot(root)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, found...)
	}
	sort.Slice(blobs, func(i, j int) bool { return blobs[i].origin < blobs[j].origin })
	return blobs, nil
}

func (w *InputWalker) walkRoot(root string) ([]classBlob, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, jtcerr.New(jtcerr.IOError, root, err.Error())
	}

	if info.IsDir() {
		return w.walkDirectory(root)
	}
	return w.walkFile(root, info.Size())
}

func (w *InputWalker) walkDirectory(dir string) ([]classBlob, error) {
	var blobs []classBlob
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".class") {
			return nil
		}
		data, err := readWithMmap(path, info.Size())
		if err != nil {
			return jtcerr.New(jtcerr.IOError, path, err.Error())
		}
		blobs = append(blobs, classBlob{origin: path, data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blobs, nil
}

func (w *InputWalker) walkFile(path string, size int64) ([]classBlob, error) {
	data, err := readWithMmap(path, size)
	if err != nil {
		return nil, jtcerr.New(jtcerr.IOError, path, err.Error())
	}

	kind := mimetype.Detect(data)
	if isArchiveKind(kind.String()) || strings.HasSuffix(path, ".jar") || strings.HasSuffix(path, ".jmod") {
		return w.walkArchive(path, data)
	}
	if strings.HasSuffix(path, ".class") {
		return []classBlob{{origin: path, data: data}}, nil
	}

	if w.Log != nil {
		w.Log.WithField("path", path).Warn("input root matched no known class-bearing shape; skipping")
	}
	return nil, nil
}

func (w *InputWalker) walkArchive(path string, data []byte) ([]classBlob, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, jtcerr.Wrap(jtcerr.MalformedInput, path, fmt.Errorf("opening archive: %w", err))
	}

	var blobs []classBlob
	for _, f := range r.File {
		// jmod archives prefix class entries with "classes/"; jars do not.
		name := strings.TrimPrefix(f.Name, "classes/")
		if !strings.HasSuffix(name, ".class") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, jtcerr.Wrap(jtcerr.IOError, path, fmt.Errorf("opening archive member %s: %w", f.Name, err))
		}
		member, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, jtcerr.Wrap(jtcerr.IOError, path, fmt.Errorf("reading archive member %s: %w", f.Name, err))
		}
		blobs = append(blobs, classBlob{origin: path + "!" + f.Name, data: member})
	}
	return blobs, nil
}

func isArchiveKind(mimeType string) bool {
	return mimeType == "application/zip" || strings.Contains(mimeType, "zip")
}

// readWithMmap maps a regular file read-only. Empty files (size 0) cannot
// be mmap-ed, so they yield no data without being opened.
func readWithMmap(path string, size int64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		// Some filesystems (notably overlay/FUSE mounts in CI sandboxes)
		// reject mmap; fall back to a regular read rather than failing ingest.
		return io.ReadAll(f)
	}
	defer m.Unmap()

	out := make([]byte, len(m))
	copy(out, m)
	return out, nil
}

// Ingest discovers, parses, and models every class reachable from roots,
// and registers runtimeProvided names as opaque placeholders rather than
// input classes. It never consults another class while building any one
// ClassModel (spec.md §4.1).
func Ingest(roots []string, runtimeProvided []string, log *logrus.Logger) (*model.ProgramModel, error) {
	walker := &InputWalker{Roots: roots, Log: log}
	blobs, err := walker.Walk()
	if err != nil {
		return nil, err
	}

	program := model.NewProgramModel()
	var malformed []*jtcerr.Error

	for _, blob := range blobs {
		raw, err := Parse(bytes.NewReader(blob.data))
		if err != nil {
			malformed = append(malformed, jtcerr.New(jtcerr.MalformedInput, blob.origin, err.Error()))
			continue
		}
		cm, err := BuildClassModel(raw)
		if err != nil {
			if e, ok := err.(*jtcerr.Error); ok {
				malformed = append(malformed, e)
			} else {
				malformed = append(malformed, jtcerr.New(jtcerr.MalformedInput, blob.origin, err.Error()))
			}
			continue
		}
		if log != nil {
			log.WithFields(logrus.Fields{"class": cm.Name, "origin": blob.origin}).Debug("ingested class")
		}
		program.Add(cm)
	}

	if len(malformed) > 0 {
		return nil, jtcerr.NewMulti(jtcerr.MalformedInput, malformed)
	}

	for _, name := range runtimeProvided {
		program.ProvidedByRuntime[name] = true
		if _, exists := program.Classes[name]; !exists {
			placeholder := model.NewClassModel(name, model.KindClass)
			placeholder.Origin = model.OriginRuntimeProvided
			program.Add(placeholder)
		}
	}

	return program, nil
}
