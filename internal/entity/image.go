package entity

import "image"

// Band is a contiguous run of source rows. Index is the band's position in
// its partition, Offset the first source row it covers.
type Band struct {
	Index  int
	Offset int
	Image  image.Image
}

// Height returns the number of rows carried by the band.
func (b Band) Height() int {
	if b.Image == nil {
		return 0
	}
	return b.Image.Bounds().Dy()
}

func (b Band) Width() int {
	if b.Image == nil {
		return 0
	}
	return b.Image.Bounds().Dx()
}

// Task is one unit of work sent from the coordinator to a worker.
type Task struct {
	RequestID string
	Operation string
	Band      Band
}

// Result carries a transformed band back to the coordinator. Error is set
// when the worker could not apply the operation.
type Result struct {
	RequestID string
	WorkerID  int
	Band      Band
	Error     string
}

// ProcessedImage is the outcome of one request.
type ProcessedImage struct {
	RequestID string
	Operation string
	Format    string
	MimeType  string
	Width     int
	Height    int
	Channels  int
	Data      []byte
}

// Channels reports how many colour channels an image carries: 1 for
// grayscale models, 3 otherwise. Alpha is not counted.
func Channels(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	}
	return 3
}

type OperationInfo struct {
	Name     string `json:"name"`
	Channels string `json:"channels"`
}

type OperationsResponse struct {
	Operations []OperationInfo `json:"operations"`
	PoolSize   int             `json:"pool_size"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
