package ocr

import (
	"bytes"
	"encoding/json"

	"github.com/turtacn/deckscan/pkg/errors"
	"github.com/turtacn/deckscan/pkg/types/scan"
)

// FragmentsDecoder reads the native format: either a bare array
// [{"box":[x0,y0,...],"text":"..."}] or an object {"fragments":[...]}.
type FragmentsDecoder struct{}

func (FragmentsDecoder) Format() string { return FormatFragments }

func (FragmentsDecoder) Decode(data []byte) ([]scan.Fragment, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.InputError("empty OCR payload")
	}

	var fragments []scan.Fragment
	if trimmed[0] == '{' {
		var doc struct {
			Fragments []scan.Fragment `json:"fragments"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, errors.InputError("undecodable fragments payload").WithCause(err)
		}
		fragments = doc.Fragments
	} else if err := json.Unmarshal(trimmed, &fragments); err != nil {
		return nil, errors.InputError("undecodable fragments payload").WithCause(err)
	}

	if err := scan.ValidateFragments(fragments); err != nil {
		return nil, err
	}
	return fragments, nil
}
