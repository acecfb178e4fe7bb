package ml_service

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeConn struct {
	calls   map[string]int
	respond func(method string, attempt int, req *structpb.Struct) (map[string]any, error)
}

func (f *fakeConn) Invoke(_ context.Context, method string, args, reply any, _ ...grpc.CallOption) error {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	attempt := f.calls[method]
	f.calls[method]++

	out, err := f.respond(method, attempt, args.(*structpb.Struct))
	if err != nil {
		return err
	}

	s, err := structpb.NewStruct(out)
	if err != nil {
		return err
	}
	proto.Merge(reply.(*structpb.Struct), s)
	return nil
}

func (f *fakeConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("streams are not supported")
}

func newTestService(conn *fakeConn) *MLService {
	m := NewMLService(conn, &cfg.MLServiceCfg{MaxConcurrent: 2, MaxRetries: 3}, logger.NewNopLogger())
	m.baseJitter = time.Millisecond
	m.maxJitter = 2 * time.Millisecond
	return m
}

func TestVectorize(t *testing.T) {
	conn := &fakeConn{respond: func(method string, _ int, req *structpb.Struct) (map[string]any, error) {
		assert.Equal(t, methodVectorize, method)
		assert.Equal(t, "image/jpeg", req.GetFields()["image_type"].GetStringValue())
		return map[string]any{"vector": []any{0.5, -0.25, 1.0}, "model_version": "dinov2_vitb14"}, nil
	}}

	vec, version, err := newTestService(conn).Vectorize(context.Background(), []byte{1, 2, 3}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25, 1.0}, vec)
	assert.Equal(t, "dinov2_vitb14", version)
}

func TestVectorizeRetriesTransientErrors(t *testing.T) {
	conn := &fakeConn{respond: func(_ string, attempt int, _ *structpb.Struct) (map[string]any, error) {
		if attempt < 2 {
			return nil, status.Error(codes.Unavailable, "warming up")
		}
		return map[string]any{"vector": []any{1.0}, "model_version": "m"}, nil
	}}

	_, _, err := newTestService(conn).Vectorize(context.Background(), []byte{1}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, 3, conn.calls[methodVectorize])
}

func TestVectorizeErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   error
		wantCalls int
	}{
		{name: "unavailable", err: status.Error(codes.Unavailable, "down"), wantErr: e.ErrModelUnavailable, wantCalls: 3},
		{name: "bad image", err: status.Error(codes.InvalidArgument, "cannot decode"), wantErr: e.ErrImageDecode, wantCalls: 1},
		{name: "internal", err: status.Error(codes.Internal, "oom"), wantErr: e.ErrModelUnavailable, wantCalls: 1},
		{name: "deadline", err: status.Error(codes.DeadlineExceeded, "slow"), wantErr: context.DeadlineExceeded, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{respond: func(string, int, *structpb.Struct) (map[string]any, error) {
				return nil, tt.err
			}}

			_, _, err := newTestService(conn).Vectorize(context.Background(), []byte{1}, "image/jpeg")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCalls, conn.calls[methodVectorize])
		})
	}
}

func TestVectorizeEmptyVector(t *testing.T) {
	conn := &fakeConn{respond: func(string, int, *structpb.Struct) (map[string]any, error) {
		return map[string]any{"vector": []any{}}, nil
	}}

	_, _, err := newTestService(conn).Vectorize(context.Background(), []byte{1}, "image/jpeg")
	assert.ErrorIs(t, err, e.ErrModelUnavailable)
}

func TestProposeRegions(t *testing.T) {
	conn := &fakeConn{respond: func(method string, _ int, _ *structpb.Struct) (map[string]any, error) {
		assert.Equal(t, methodDetect, method)
		return map[string]any{"boxes": []any{
			map[string]any{"x1": 10.0, "y1": 20.0, "x2": 50.0, "y2": 60.0, "confidence": 0.8, "label": "dress"},
			map[string]any{"x1": 30.0, "y1": 30.0, "x2": 30.0, "y2": 40.0, "confidence": 0.9},
		}}, nil
	}}

	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	regions, err := newTestService(conn).ProposeRegions(context.Background(), img)
	require.NoError(t, err)

	require.Len(t, regions, 1)
	assert.Equal(t, image.Rect(10, 20, 50, 60), regions[0].Rect())
	assert.InDelta(t, 0.8, regions[0].Confidence, 1e-6)
	assert.Equal(t, "dress", regions[0].Label)
}

func TestProposeRegionsScalesLargeImages(t *testing.T) {
	conn := &fakeConn{respond: func(string, int, *structpb.Struct) (map[string]any, error) {
		return map[string]any{"boxes": []any{
			map[string]any{"x1": 0.0, "y1": 0.0, "x2": 640.0, "y2": 320.0, "confidence": 0.7},
		}}, nil
	}}

	img := image.NewRGBA(image.Rect(0, 0, 2560, 1280))
	regions, err := newTestService(conn).ProposeRegions(context.Background(), img)
	require.NoError(t, err)

	require.Len(t, regions, 1)
	assert.Equal(t, image.Rect(0, 0, 1280, 640), regions[0].Rect())
}

func TestGetModelInfo(t *testing.T) {
	conn := &fakeConn{respond: func(string, int, *structpb.Struct) (map[string]any, error) {
		return map[string]any{"model_version": "dinov2_vitb14", "dimension": 768.0}, nil
	}}

	info, err := newTestService(conn).GetModelInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &ModelInfo{ModelVersion: "dinov2_vitb14", Dimension: 768}, info)
}
