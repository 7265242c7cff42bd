package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/bandpool/internal/entity"
)

// bandFrame is the wire form of a band. Pixels is a PNG stream; it is omitted
// for zero-area bands, which PNG cannot represent.
type bandFrame struct {
	Index    int    `json:"index"`
	Offset   int    `json:"offset"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	Pixels   []byte `json:"pixels,omitempty"`
}

type taskMessage struct {
	RequestID string    `json:"request_id"`
	Operation string    `json:"operation"`
	Band      bandFrame `json:"band"`
}

type resultMessage struct {
	RequestID string    `json:"request_id"`
	WorkerID  int       `json:"worker_id"`
	Band      bandFrame `json:"band"`
	Error     string    `json:"error,omitempty"`
}

func MarshalTask(task entity.Task) ([]byte, error) {
	frame, err := encodeBand(task.Band)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taskMessage{
		RequestID: task.RequestID,
		Operation: task.Operation,
		Band:      frame,
	})
}

func UnmarshalTask(data []byte) (entity.Task, error) {
	var msg taskMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return entity.Task{}, fmt.Errorf("failed to parse task: %w", err)
	}
	band, err := decodeBand(msg.Band)
	if err != nil {
		return entity.Task{}, err
	}
	return entity.Task{RequestID: msg.RequestID, Operation: msg.Operation, Band: band}, nil
}

func MarshalResult(result entity.Result) ([]byte, error) {
	frame, err := encodeBand(result.Band)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resultMessage{
		RequestID: result.RequestID,
		WorkerID:  result.WorkerID,
		Band:      frame,
		Error:     result.Error,
	})
}

func UnmarshalResult(data []byte) (entity.Result, error) {
	var msg resultMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return entity.Result{}, fmt.Errorf("failed to parse result: %w", err)
	}
	band, err := decodeBand(msg.Band)
	if err != nil {
		return entity.Result{}, err
	}
	return entity.Result{
		RequestID: msg.RequestID,
		WorkerID:  msg.WorkerID,
		Band:      band,
		Error:     msg.Error,
	}, nil
}

func encodeBand(b entity.Band) (bandFrame, error) {
	frame := bandFrame{
		Index:    b.Index,
		Offset:   b.Offset,
		Width:    b.Width(),
		Height:   b.Height(),
		Channels: 3,
	}
	if b.Image == nil {
		return frame, nil
	}
	frame.Channels = entity.Channels(b.Image)
	if b.Image.Bounds().Empty() {
		return frame, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, b.Image); err != nil {
		return bandFrame{}, fmt.Errorf("failed to encode band %d: %w", b.Index, err)
	}
	frame.Pixels = buf.Bytes()
	return frame, nil
}

func decodeBand(f bandFrame) (entity.Band, error) {
	band := entity.Band{Index: f.Index, Offset: f.Offset}
	if len(f.Pixels) == 0 {
		rect := image.Rect(0, 0, f.Width, f.Height)
		if f.Channels == 1 {
			band.Image = image.NewGray(rect)
		} else {
			band.Image = image.NewNRGBA(rect)
		}
		return band, nil
	}

	img, err := png.Decode(bytes.NewReader(f.Pixels))
	if err != nil {
		return entity.Band{}, fmt.Errorf("failed to decode band %d: %w", f.Index, err)
	}
	if f.Channels == 1 {
		if gray, ok := img.(*image.Gray); ok {
			band.Image = gray
			return band, nil
		}
	}
	// opaque colour bands come back as RGB without alpha; normalise them
	band.Image = imaging.Clone(img)
	return band, nil
}
