package codec

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region mock
type mockConn struct {
	resp *structpb.Struct
	err  error

	lastMethod string
	lastReq    *structpb.Struct
}

func (m *mockConn) Invoke(_ context.Context, method string, args, reply any, _ ...grpc.CallOption) error {
	m.lastMethod = method
	m.lastReq = args.(*structpb.Struct)
	if m.err != nil {
		return m.err
	}
	proto.Merge(reply.(*structpb.Struct), m.resp)
	return nil
}

func (m *mockConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("streams not supported")
}

func response(t *testing.T, labels []any, probs []any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(map[string]any{"labels": labels, "probabilities": probs})
	if err != nil {
		t.Fatalf("build response: %v", err)
	}
	return s
}

// #endregion mock

// #region constructor-tests
func TestNewModelClientInvalidAddr(t *testing.T) {
	client, err := NewModelClient("localhost:0")
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	defer client.Close()
}

func TestNewModelClientWithConn(t *testing.T) {
	c := NewModelClientWithConn(&mockConn{})
	if c == nil || c.cc == nil {
		t.Fatal("expected client with injected connection")
	}
	if err := c.Close(); err != nil {
		t.Errorf("close without owned conn: %v", err)
	}
}

// #endregion constructor-tests

// #region predict-tests
func TestPredictProba_Success(t *testing.T) {
	mock := &mockConn{resp: response(t, []any{"combat", "exploring"}, []any{0.7, 0.3})}
	c := NewModelClientWithConn(mock)

	labels, probs, err := c.PredictProba(context.Background(), []float64{1, 2}, []string{"health", "hunger"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(labels) != 2 || labels[0] != "combat" {
		t.Errorf("unexpected labels %v", labels)
	}
	if probs[0] != 0.7 || probs[1] != 0.3 {
		t.Errorf("unexpected probabilities %v", probs)
	}
	if mock.lastMethod != PredictMethod {
		t.Errorf("expected method %s, got %s", PredictMethod, mock.lastMethod)
	}
	feats := mock.lastReq.GetFields()["features"].GetListValue().GetValues()
	if len(feats) != 2 || feats[1].GetNumberValue() != 2 {
		t.Errorf("features not sent: %v", feats)
	}
	cols := mock.lastReq.GetFields()["columns"].GetListValue().GetValues()
	if len(cols) != 2 || cols[0].GetStringValue() != "health" {
		t.Errorf("columns not sent: %v", cols)
	}
}

func TestPredictProba_Error(t *testing.T) {
	mock := &mockConn{err: errors.New("rpc failed")}
	c := NewModelClientWithConn(mock)

	_, _, err := c.PredictProba(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, mock.err) {
		t.Errorf("expected wrapped rpc error, got: %v", err)
	}
}

func TestPredictProba_ShapeMismatch(t *testing.T) {
	mock := &mockConn{resp: response(t, []any{"combat"}, []any{0.5, 0.5})}
	c := NewModelClientWithConn(mock)

	if _, _, err := c.PredictProba(context.Background(), []float64{1}, []string{"x"}); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}

// #endregion predict-tests
