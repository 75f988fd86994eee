// Package ingest adds batches of report files to a tree store session,
// skipping files whose content was already ingested by any build.
package ingest

import (
	"bytes"
	"context"
	"io"
	"os"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"github.com/sandialabs/watchr-jenkins-sub000/go/metrics2"
	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"github.com/sandialabs/watchr-jenkins-sub000/go/sklog"
	"github.com/sandialabs/watchr-jenkins-sub000/go/util"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/report"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/treestore"
	"golang.org/x/sync/errgroup"
)

// Decoder turns the contents of a report file into a Report.
type Decoder interface {
	Decode(r io.Reader, filename string) (*report.Report, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(r io.Reader, filename string) (*report.Report, error)

// Decode implements Decoder.
func (f DecoderFunc) Decode(r io.Reader, filename string) (*report.Report, error) {
	return f(r, filename)
}

// Duplicate is a file that was skipped because its content had already been
// ingested.
type Duplicate struct {
	Filename string
	Original *treestore.Duplicate
}

// Result summarizes one call to IngestFiles.
type Result struct {
	// Added are the files whose reports were added, in input order.
	Added []string

	// Duplicates are the files skipped as already ingested.
	Duplicates []Duplicate

	// Failed are the files that could not be read, decoded or added.
	Failed []string
}

// Ingester adds report files to a Session under one build number.
type Ingester struct {
	session *treestore.Session
	decoder Decoder
	build   int

	addedCounter     metrics2.Counter
	duplicateCounter metrics2.Counter
	failedCounter    metrics2.Counter
}

// New returns an Ingester. If decoder is nil report.DecodeJSON is used.
func New(session *treestore.Session, decoder Decoder, build int) *Ingester {
	if decoder == nil {
		decoder = DecoderFunc(report.DecodeJSON)
	}
	return &Ingester{
		session:          session,
		decoder:          decoder,
		build:            build,
		addedCounter:     metrics2.GetCounter("watchr_ingest_files_added", nil),
		duplicateCounter: metrics2.GetCounter("watchr_duplicate_files_skipped", nil),
		failedCounter:    metrics2.GetCounter("watchr_ingest_failed", nil),
	}
}

type hashedFile struct {
	name     string
	contents []byte
	hash     string
	err      error
}

// readAndHash loads every file and computes its content hash in parallel.
// Per-file errors are stored on the file rather than returned.
func readAndHash(ctx context.Context, filenames []string) ([]*hashedFile, error) {
	files := make([]*hashedFile, len(filenames))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, name := range filenames {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f := &hashedFile{name: name}
			files[i] = f
			b, err := os.ReadFile(name)
			if err != nil {
				f.err = skerr.Wrapf(err, "Failed to read %s", name)
				return nil
			}
			f.contents = b
			f.hash, f.err = util.MD5FromReader(bytes.NewReader(b), nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, skerr.Wrap(err)
	}
	return files, nil
}

// IngestFiles adds the reports in filenames to the session. A file whose
// content was already ingested under any build is skipped and returned in
// Result.Duplicates. Failures on individual files are logged, returned
// together in the error, and do not stop the rest of the batch.
func (i *Ingester) IngestFiles(ctx context.Context, filenames []string) (*Result, error) {
	files, err := readAndHash(ctx, filenames)
	if err != nil {
		return nil, err
	}
	ret := &Result{
		Added:      []string{},
		Duplicates: []Duplicate{},
		Failed:     []string{},
	}
	var errs *multierror.Error
	fail := func(name string, err error) {
		sklog.Errorf("Build %d: %s", i.build, err)
		i.failedCounter.Inc(1)
		ret.Failed = append(ret.Failed, name)
		errs = multierror.Append(errs, err)
	}

	for _, f := range files {
		if f.err != nil {
			fail(f.name, f.err)
			continue
		}
		dup, err := i.session.LookupHash(ctx, f.hash)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		if dup != nil {
			sklog.Infof("Build %d: skipping %s, same content as %s from build %d at %s", i.build, f.name, dup.Filename, dup.Build, dup.Timestamp)
			i.duplicateCounter.Inc(1)
			ret.Duplicates = append(ret.Duplicates, Duplicate{Filename: f.name, Original: dup})
			continue
		}
		r, err := i.decoder.Decode(bytes.NewReader(f.contents), f.name)
		if err != nil {
			fail(f.name, skerr.Wrapf(err, "Failed to decode %s", f.name))
			continue
		}
		if err := i.session.AddReport(ctx, r); err != nil {
			fail(f.name, skerr.Wrapf(err, "Failed to add %s", f.name))
			continue
		}
		if err := i.session.RecordHash(ctx, i.build, f.hash, f.name); err != nil {
			fail(f.name, skerr.Wrapf(err, "Failed to record hash of %s", f.name))
			continue
		}
		i.addedCounter.Inc(1)
		ret.Added = append(ret.Added, f.name)
	}
	sklog.Infof("Build %d: added %d files, skipped %d duplicates, %d failed", i.build, len(ret.Added), len(ret.Duplicates), len(ret.Failed))
	return ret, errs.ErrorOrNil()
}
