package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/recurlhq/recurl/packages/runner"
)

type junitTestSuites struct {
	XMLName   xml.Name         `xml:"testsuites"`
	Name      string           `xml:"name,attr,omitempty"`
	Tests     int              `xml:"tests,attr"`
	Failures  int              `xml:"failures,attr"`
	Errors    int              `xml:"errors,attr"`
	Skipped   int              `xml:"skipped,attr"`
	Time      float64          `xml:"time,attr"`
	Timestamp string           `xml:"timestamp,attr,omitempty"`
	Suites    []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	Cases     []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Error     *junitError   `xml:"error,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type junitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter accumulates run results and writes JUnit XML on Flush.
type JUnitFormatter struct {
	writer io.Writer
	suites []junitTestSuite
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer: os.Stdout,
		suites: make([]junitTestSuite, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) FormatRun(result *runner.RunResult) {
	suite := junitTestSuite{
		Name:      result.File,
		Tests:     len(result.Results),
		Failures:  result.Failed,
		Skipped:   result.Skipped,
		Time:      result.Duration.Seconds(),
		Timestamp: time.Now().Format(time.RFC3339),
		Cases:     make([]junitTestCase, 0, len(result.Results)),
	}

	for _, r := range result.Results {
		tc := junitTestCase{
			Name:      r.Name,
			ClassName: result.File,
			Time:      r.Duration.Seconds(),
		}

		switch {
		case r.Skipped:
			tc.Skipped = &junitSkipped{Message: r.SkipReason}
		case r.Error != nil:
			suite.Errors++
			suite.Failures--
			tc.Error = &junitError{
				Message: r.Error.Error(),
				Type:    "Error",
			}
		case !r.Passed:
			var detail strings.Builder
			for _, c := range r.Checks {
				if !c.Passed {
					fmt.Fprintf(&detail, "%s: %s\n", c.Desc, c.Message)
				}
			}
			tc.Failure = &junitFailure{
				Message: "expectation failed",
				Type:    "ExpectationError",
				Content: detail.String(),
			}
		}

		suite.Cases = append(suite.Cases, tc)
	}

	f.suites = append(f.suites, suite)
}

// FormatError is a no-op: errors already live in the per-request cases.
func (f *JUnitFormatter) FormatError(err error) {}

// Flush writes the accumulated XML document.
func (f *JUnitFormatter) Flush(total time.Duration) error {
	var tests, failures, errs, skipped int
	for _, suite := range f.suites {
		tests += suite.Tests
		failures += suite.Failures
		errs += suite.Errors
		skipped += suite.Skipped
	}

	root := junitTestSuites{
		Name:      "recurl",
		Tests:     tests,
		Failures:  failures,
		Errors:    errs,
		Skipped:   skipped,
		Time:      total.Seconds(),
		Timestamp: time.Now().Format(time.RFC3339),
		Suites:    f.suites,
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	return encoder.Encode(root)
}
