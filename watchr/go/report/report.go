// Package report defines the structured form of a performance report as
// handed to the tree store by the format parsers.
package report

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/types"
)

// ErrMalformedElement is returned for elements that cannot be placed in the
// tree.
var ErrMalformedElement = errors.New("malformed report element")

// Element is one level of a report. Attributes become measurements and
// Children become the next level down.
type Element struct {
	Name string `json:"name"`

	// Date is the date of the data. Children without a date inherit the
	// date of their parent.
	Date string `json:"date,omitempty"`

	Category   types.Category     `json:"category"`
	Units      string             `json:"units,omitempty"`
	Attributes map[string]float64 `json:"attributes,omitempty"`
	Metadata   map[string]string  `json:"metadata,omitempty"`
	Children   []*Element         `json:"children,omitempty"`
}

// Report is the root Element of one report file.
type Report struct {
	Element

	// Filename is the file the report was read from. Not serialized.
	Filename string `json:"-"`
}

// ValidateName returns ErrMalformedElement if name cannot be used as a
// single path segment.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return skerr.Wrapf(ErrMalformedElement, "element has no name")
	case name == "." || name == "..":
		return skerr.Wrapf(ErrMalformedElement, "element name %q is reserved", name)
	case strings.ContainsAny(name, `/\`):
		return skerr.Wrapf(ErrMalformedElement, "element name %q contains a path separator", name)
	}
	return nil
}

// DecodeJSON reads a Report from r. The report must carry a parsable date.
func DecodeJSON(r io.Reader, filename string) (*Report, error) {
	var ret Report
	if err := json.NewDecoder(r).Decode(&ret); err != nil {
		return nil, skerr.Wrapf(err, "Failed to decode report %s", filename)
	}
	if _, err := types.ParseDate(ret.Date); err != nil {
		return nil, skerr.Wrapf(err, "Report %s has an invalid date", filename)
	}
	ret.Filename = filename
	return &ret, nil
}
