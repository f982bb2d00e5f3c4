// Package ocr turns the output of an OCR collaborator into scan fragments.
// Calling the OCR service itself is left to the caller.
package ocr

import (
	"sort"
	"strings"

	"github.com/turtacn/deckscan/pkg/errors"
	"github.com/turtacn/deckscan/pkg/types/scan"
)

// Supported payload formats.
const (
	FormatFragments = "fragments"
	FormatAzureRead = "azure-read"
)

// Decoder converts one OCR payload into fragments.
type Decoder interface {
	Format() string
	Decode(data []byte) ([]scan.Fragment, error)
}

var decoders = map[string]Decoder{
	FormatFragments: FragmentsDecoder{},
	FormatAzureRead: AzureReadDecoder{},
}

// Lookup returns the decoder for format. The empty format means fragments.
func Lookup(format string) (Decoder, error) {
	if format == "" {
		format = FormatFragments
	}
	d, ok := decoders[strings.ToLower(format)]
	if !ok {
		return nil, errors.InputError("unsupported OCR payload format").
			WithDetail(format + "; expected one of " + strings.Join(Formats(), ", "))
	}
	return d, nil
}

// Formats lists the registered format names in sorted order.
func Formats() []string {
	out := make([]string, 0, len(decoders))
	for f := range decoders {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Decode is shorthand for Lookup followed by Decode.
func Decode(format string, data []byte) ([]scan.Fragment, error) {
	d, err := Lookup(format)
	if err != nil {
		return nil, err
	}
	return d.Decode(data)
}
