package util

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"github.com/sandialabs/watchr-jenkins-sub000/go/sklog"
)

// Close wraps an io.Closer and logs an error if one is returned.
func Close(c io.Closer) {
	if err := c.Close(); err != nil {
		// Don't start the stacktrace here, but at the caller's location
		sklog.ErrorfWithDepth(1, "Failed to Close(): %v", err)
	}
}

// Remove removes the specified file and logs an error if one is returned.
func Remove(name string) {
	if err := os.Remove(name); err != nil {
		sklog.ErrorfWithDepth(1, "Failed to Remove(%s): %v", name, err)
	}
}

// Round rounds v to the given number of decimal places. Negative places
// leave v untouched. NaN and Inf are returned as is.
func Round(v float64, places int) float64 {
	if places < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// MD5FromReader returns the hex encoded MD5 hash of the content in the
// provided reader. If the writer w is not nil it will also write the content
// of the reader to w.
func MD5FromReader(r io.Reader, w io.Writer) (string, error) {
	hashWriter := md5.New()
	var tempOut io.Writer
	if w == nil {
		tempOut = hashWriter
	} else {
		tempOut = io.MultiWriter(w, hashWriter)
	}

	if _, err := io.Copy(tempOut, r); err != nil {
		return "", skerr.Wrap(err)
	}
	return hex.EncodeToString(hashWriter.Sum(nil)), nil
}

// WithWriteFile provides an interface for writing to a backing file using a
// temporary intermediate file for more atomicity in case a long-running write
// gets interrupted.
func WithWriteFile(file string, writeFn func(io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(file), filepath.Base(file)+".tmp-")
	if err != nil {
		return skerr.Wrapf(err, "Failed to create temporary file for %s", file)
	}
	if err := writeFn(f); err != nil {
		Close(f)
		Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		Remove(f.Name())
		return skerr.Wrapf(err, "Failed to close temporary file for %s", file)
	}
	if err := os.Rename(f.Name(), file); err != nil {
		return skerr.Wrapf(err, "Failed to rename temporary file to %s", file)
	}
	return nil
}

// WithReadFile opens the given file for reading and runs the given function.
func WithReadFile(file string, fn func(f io.Reader) error) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer Close(f)
	return fn(f)
}
