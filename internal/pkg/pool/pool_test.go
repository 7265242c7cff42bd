package pool

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/ds124wfegd/bandpool/internal/entity"
	"github.com/ds124wfegd/bandpool/internal/pkg/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandle struct{ id int }

func (s stubHandle) ID() int                                       { return s.id }
func (s stubHandle) Send(context.Context, entity.Task) error       { return nil }
func (s stubHandle) Receive(context.Context) (entity.Result, error) { return entity.Result{}, nil }
func (s stubHandle) Close() error                                  { return nil }

func TestNewRequiresOrderedIDs(t *testing.T) {
	pl, err := New(stubHandle{id: 1}, stubHandle{id: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, pl.Size())
	assert.Len(t, pl.Workers(), 2)

	_, err = New(stubHandle{id: 2}, stubHandle{id: 1})
	assert.Error(t, err)
}

func TestNewLocalSizes(t *testing.T) {
	_, err := NewLocal(0, processor.NewImageProcessor())
	assert.ErrorIs(t, err, entity.ErrInvalidPoolSize)

	single, err := NewLocal(1, processor.NewImageProcessor())
	require.NoError(t, err)
	defer single.Close()
	assert.Equal(t, 1, single.Size())
	assert.Empty(t, single.Workers())

	four, err := NewLocal(4, processor.NewImageProcessor())
	require.NoError(t, err)
	defer four.Close()
	assert.Equal(t, 4, four.Size())
	for i, h := range four.Workers() {
		assert.Equal(t, i+1, h.ID())
	}
}

func TestLocalWorkerRoundTrip(t *testing.T) {
	pl, err := NewLocal(3, processor.NewImageProcessor())
	require.NoError(t, err)
	defer pl.Close()

	black := image.NewNRGBA(image.Rect(0, 0, 5, 4))
	for i := 3; i < len(black.Pix); i += 4 {
		black.Pix[i] = 255
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h := pl.Workers()[1]
	require.NoError(t, h.Send(ctx, entity.Task{
		RequestID: "req",
		Operation: processor.ColorInversion,
		Band:      entity.Band{Index: 2, Offset: 8, Image: black},
	}))

	res, err := h.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "req", res.RequestID)
	assert.Equal(t, 2, res.WorkerID)
	assert.Equal(t, 2, res.Band.Index)
	assert.Equal(t, 8, res.Band.Offset)
	assert.Empty(t, res.Error)

	out, ok := res.Band.Image.(*image.NRGBA)
	require.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, out.NRGBAAt(0, 0))
}

func TestReceiveHonoursContext(t *testing.T) {
	pl, err := NewLocal(2, processor.NewImageProcessor())
	require.NoError(t, err)
	defer pl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = pl.Workers()[0].Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClosedLinkRejectsTraffic(t *testing.T) {
	pl, err := NewLocal(2, processor.NewImageProcessor())
	require.NoError(t, err)
	h := pl.Workers()[0]

	require.NoError(t, pl.Close())

	err = h.Send(context.Background(), entity.Task{})
	assert.ErrorIs(t, err, entity.ErrEndpointClosed)
	_, err = h.Receive(context.Background())
	assert.ErrorIs(t, err, entity.ErrEndpointClosed)
}

func TestHealthCheckJoinsFailures(t *testing.T) {
	pl, err := New(stubHandle{id: 1})
	require.NoError(t, err)
	require.NoError(t, pl.HealthCheck(context.Background()))

	down := errors.New("broker down")
	pl.OnHealthCheck(func(context.Context) error { return nil })
	pl.OnHealthCheck(func(context.Context) error { return down })

	assert.ErrorIs(t, pl.HealthCheck(context.Background()), down)
}
