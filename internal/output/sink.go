package output

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rohmanhakim/scoutly/internal/metadata"
	"github.com/rohmanhakim/scoutly/internal/report"
	"github.com/rohmanhakim/scoutly/pkg/failure"
	"github.com/rohmanhakim/scoutly/pkg/fileutil"
)

/*
Responsibilities
- Render a CrawlReport as text or JSON
- Write it to stdout, or to a --save path
- Classify every write failure as fatal (spec.md §7)
*/

// Sink is the output port the CLI writes a finished CrawlReport through.
type Sink interface {
	Write(rpt report.CrawlReport, format Format, savePath string) failure.ClassifiedError
}

// StdoutSink writes to stdout when savePath is empty, or to the given file
// otherwise.
type StdoutSink struct {
	metadataSink metadata.MetadataSink
	stdout       io.Writer
}

func NewStdoutSink(metadataSink metadata.MetadataSink, stdout io.Writer) StdoutSink {
	return StdoutSink{metadataSink: metadataSink, stdout: stdout}
}

func (s StdoutSink) Write(rpt report.CrawlReport, format Format, savePath string) failure.ClassifiedError {
	content, err := render(rpt, format)
	if err != nil {
		outErr := &OutputError{Message: err.Error(), Cause: ErrCauseEncodeFailure}
		s.recordError(rpt, outErr)
		return outErr
	}

	if savePath == "" {
		if _, werr := s.stdout.Write(content); werr != nil {
			outErr := &OutputError{Message: werr.Error(), Cause: ErrCauseWriteFailure}
			s.recordError(rpt, outErr)
			return outErr
		}
		return nil
	}

	if dir := filepath.Dir(savePath); dir != "." && dir != "" {
		if ferr := fileutil.EnsureDir(dir); ferr != nil {
			var fileErr *fileutil.FileError
			errors.As(ferr, &fileErr)
			outErr := &OutputError{Message: ferr.Error(), Cause: ErrCausePathError, Path: dir}
			s.recordError(rpt, outErr)
			return outErr
		}
	}

	if werr := os.WriteFile(savePath, content, 0644); werr != nil {
		cause := ErrCauseWriteFailure
		if errors.Is(werr, syscall.ENOSPC) {
			cause = ErrCauseDiskFull
		}
		outErr := &OutputError{Message: werr.Error(), Cause: cause, Path: savePath}
		s.recordError(rpt, outErr)
		return outErr
	}

	return nil
}

func (s StdoutSink) recordError(rpt report.CrawlReport, err *OutputError) {
	s.metadataSink.RecordError(
		time.Now(),
		"output",
		"StdoutSink.Write",
		mapOutputErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, rpt.StartURL.String()),
			metadata.NewAttr(metadata.AttrPath, err.Path),
		},
	)
}

func render(rpt report.CrawlReport, format Format) ([]byte, error) {
	if format == FormatJSON {
		return renderJSON(rpt)
	}
	return renderText(rpt), nil
}
