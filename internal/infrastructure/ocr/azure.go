package ocr

import (
	"encoding/json"
	"math"

	"github.com/turtacn/deckscan/pkg/errors"
	"github.com/turtacn/deckscan/pkg/types/scan"
)

type azurePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type azureLine struct {
	Text            string       `json:"text"`
	BoundingPolygon []azurePoint `json:"boundingPolygon"`
	BoundingBoxFlat []float64    `json:"boundingBox"`
}

type azureDocument struct {
	// Image Analysis 4.0
	ReadResult *struct {
		Blocks []struct {
			Lines []azureLine `json:"lines"`
		} `json:"blocks"`
	} `json:"readResult"`
	// Read 3.x
	AnalyzeResult *struct {
		ReadResults []struct {
			Lines []azureLine `json:"lines"`
		} `json:"readResults"`
	} `json:"analyzeResult"`
}

// AzureReadDecoder reads Azure AI Vision results. Image Analysis 4.0
// documents (readResult.blocks[].lines[].boundingPolygon) and Read 3.x
// documents (analyzeResult.readResults[].lines[].boundingBox) are accepted.
// Polygon vertices are flattened into x0, y0, x1, y1, ... and rounded.
type AzureReadDecoder struct{}

func (AzureReadDecoder) Format() string { return FormatAzureRead }

func (AzureReadDecoder) Decode(data []byte) ([]scan.Fragment, error) {
	var doc azureDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.InputError("undecodable Azure read result").WithCause(err)
	}

	var lines []azureLine
	switch {
	case doc.ReadResult != nil:
		for _, b := range doc.ReadResult.Blocks {
			lines = append(lines, b.Lines...)
		}
	case doc.AnalyzeResult != nil:
		for _, p := range doc.AnalyzeResult.ReadResults {
			lines = append(lines, p.Lines...)
		}
	default:
		return nil, errors.InputError("Azure read result has neither readResult nor analyzeResult")
	}

	fragments := make([]scan.Fragment, 0, len(lines))
	for _, l := range lines {
		var box scan.BoundingBox
		if len(l.BoundingPolygon) > 0 {
			box = make(scan.BoundingBox, 0, 2*len(l.BoundingPolygon))
			for _, p := range l.BoundingPolygon {
				box = append(box, round(p.X), round(p.Y))
			}
		} else {
			box = make(scan.BoundingBox, 0, len(l.BoundingBoxFlat))
			for _, v := range l.BoundingBoxFlat {
				box = append(box, round(v))
			}
		}
		fragments = append(fragments, scan.Fragment{Box: box, Text: l.Text})
	}

	if err := scan.ValidateFragments(fragments); err != nil {
		return nil, err
	}
	return fragments, nil
}

func round(v float64) int { return int(math.Round(v)) }
