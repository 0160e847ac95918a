package romloader

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
)

// member is one entry of an archive.
type member struct {
	name string
	dir  bool
	open func() (io.ReadCloser, error)
}

// walkFunc visits archive members in order until visit reports done.
type walkFunc func(path string, visit func(member) (done bool, err error)) error

var walkers = map[format]walkFunc{
	formatZIP:     walkZIP,
	format7z:      walk7z,
	formatGzip:    walkGzip,
	formatTarGzip: walkTarGzip,
	formatRAR:     walkRAR,
}

func walkZIP(path string, visit func(member) (bool, error)) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		done, err := visit(member{name: f.Name, dir: f.FileInfo().IsDir(), open: f.Open})
		if done || err != nil {
			return err
		}
	}
	return nil
}

func walk7z(path string, visit func(member) (bool, error)) error {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("failed to open 7z: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		done, err := visit(member{name: f.Name, dir: f.FileInfo().IsDir(), open: f.Open})
		if done || err != nil {
			return err
		}
	}
	return nil
}

func walkRAR(path string, visit func(member) (bool, error)) error {
	r, err := rardecode.OpenReader(path)
	if err != nil {
		return fmt.Errorf("failed to open rar: %w", err)
	}
	defer r.Close()

	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read rar entry: %w", err)
		}
		done, err := visit(member{name: header.Name, dir: header.IsDir, open: streamOpener(r)})
		if done || err != nil {
			return err
		}
	}
}

// walkGzip treats a plain .gz file as an archive holding one member named
// after the file without its .gz suffix.
func walkGzip(path string, visit func(member) (bool, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open gzip: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gr.Close()

	name := gr.Name
	if name == "" {
		name = filepath.Base(path)
		if strings.HasSuffix(strings.ToLower(name), ".gz") {
			name = name[:len(name)-3]
		}
	}
	_, err = visit(member{name: name, open: streamOpener(gr)})
	return err
}

func walkTarGzip(path string, visit func(member) (bool, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open gzip: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}
		m := member{name: header.Name, dir: header.Typeflag != tar.TypeReg, open: streamOpener(tr)}
		done, err := visit(m)
		if done || err != nil {
			return err
		}
	}
}

// streamOpener exposes the current entry of a sequential archive reader.
func streamOpener(r io.Reader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	}
}
