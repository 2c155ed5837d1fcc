package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/posesim/internal/sim"
)

type ExportData struct {
	Metadata RunMetadata `json:"metadata"`
	Frames   []sim.Frame `json:"frames"`
}

func ExportJSON(w io.Writer, meta *RunMetadata, frames []sim.Frame) error {
	data := ExportData{Frames: frames}
	if meta != nil {
		data.Metadata = *meta
	}
	if data.Frames == nil {
		data.Frames = []sim.Frame{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
