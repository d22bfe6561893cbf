package zedupdate

import (
	"archive/tar"
	"bufio"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

var decompressors = map[string]func(src io.Reader) (io.Reader, error){
	"gzip": func(src io.Reader) (io.Reader, error) {
		return gzip.NewReader(src)
	},
	"xz": func(src io.Reader) (io.Reader, error) {
		return xz.NewReader(src)
	},
	"zstd": func(src io.Reader) (io.Reader, error) {
		decoder, err := zstd.NewReader(src)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	},
	"bzip2": func(src io.Reader) (io.Reader, error) {
		return bzip2.NewReader(src), nil
	},
}

// extractor writes the executable found in an archive to a file of destDir.
type extractor struct {
	cmd     string
	destDir string
	goos    string
}

// extractExecutable returns the path of the executable found in the archive at archivePath.
// Entries named like cmd are preferred; otherwise an entry containing cmd in its name is used.
// The format comes from the archive signature, not from the file name.
func extractExecutable(archivePath string, signature Signature, cmd, destDir, goos string) (string, error) {
	e := &extractor{
		cmd:     strings.ToLower(strings.TrimSuffix(cmd, ".exe")),
		destDir: destDir,
		goos:    goos,
	}
	if signature.Name == "zip" {
		return e.unzip(archivePath)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if signature.Name == "tar" {
		return e.untar(file)
	}
	decompress, ok := decompressors[signature.Name]
	if !ok {
		return "", fmt.Errorf("unsupported archive format %q", signature.Name)
	}
	log.Printf("Decompressing %s file", signature.Name)
	stream, err := decompress(file)
	if err != nil {
		return "", fmt.Errorf("failed to decompress %s file: %w", signature.Name, err)
	}
	if closer, ok := stream.(io.Closer); ok {
		defer closer.Close()
	}

	// a compressed tarball, or a single compressed executable
	buffered := bufio.NewReaderSize(stream, headerSize)
	header, _ := buffered.Peek(headerSize)
	if _, isTar := MatchSignature(header, []Signature{{Name: "tar", Offset: 257, Magic: []byte("ustar")}}); isTar {
		return e.untar(buffered)
	}
	log.Printf("Decompressed file from %s is assumed to be the executable", signature.Name)
	return e.write(buffered)
}

// match tells whether an archive entry is the executable: 2 for an exact name, 1 for a name containing cmd.
func (e *extractor) match(entry string) int {
	name := strings.ToLower(path.Base(filepath.ToSlash(entry)))
	if name == e.cmd || name == e.cmd+".exe" {
		return 2
	}
	if !strings.Contains(name, e.cmd) {
		return 0
	}
	if ext := nativeExecutableExt(e.goos); ext != "" && !strings.HasSuffix(name, ext) {
		return 0
	}
	return 1
}

func (e *extractor) unzip(archivePath string) (string, error) {
	log.Print("Decompressing zip file")

	z, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to decompress zip file: %w", err)
	}
	defer z.Close()

	var candidate *zip.File
	for _, file := range z.File {
		if file.FileInfo().IsDir() {
			continue
		}
		score := e.match(file.Name)
		if score == 2 {
			candidate = file
			break
		}
		if score == 1 && candidate == nil {
			candidate = file
		}
	}
	if candidate == nil {
		return "", fmt.Errorf("%w: no %q in zip archive", ErrExecutableNotFound, e.cmd)
	}

	log.Printf("Executable file %q was found in zip archive", candidate.Name)
	src, err := candidate.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	return e.write(src)
}

func (e *extractor) untar(src io.Reader) (string, error) {
	t := tar.NewReader(src)
	extracted := ""
	best := 0
	for {
		h, err := t.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to unarchive tar file: %w", err)
		}
		if h.Typeflag != tar.TypeReg {
			continue
		}
		score := e.match(h.Name)
		if score <= best {
			continue
		}
		log.Printf("Executable file %q was found in tar archive", h.Name)
		if extracted, err = e.write(t); err != nil {
			return "", err
		}
		best = score
		if best == 2 {
			break
		}
	}
	if extracted == "" {
		return "", fmt.Errorf("%w: no %q in tar archive", ErrExecutableNotFound, e.cmd)
	}
	return extracted, nil
}

// write stores the executable as <destDir>/<cmd>.extracted, replacing a previous extraction.
func (e *extractor) write(src io.Reader) (string, error) {
	dest := filepath.Join(e.destDir, e.cmd+".extracted")
	file, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return "", err
	}
	_, err = io.Copy(file, src)
	if errClose := file.Close(); err == nil {
		err = errClose
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("failed to extract executable: %w", err)
	}
	return dest, nil
}
