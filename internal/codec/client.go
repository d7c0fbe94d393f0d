package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region methods
// PredictMethod is the full RPC name served by the context model service.
// Request and response travel as google.protobuf.Struct so no generated stubs are needed.
const PredictMethod = "/companion.v1.ContextModel/PredictProba"

// #endregion methods

// #region client-struct
// ModelClient wraps the gRPC connection to the model inference service.
type ModelClient struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewModelClient connects to the model inference gRPC server.
func NewModelClient(addr string) (*ModelClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &ModelClient{conn: conn, cc: conn}, nil
}

// NewModelClientWithConn creates a ModelClient over an injected connection.
// Used for testing without a real gRPC server.
func NewModelClientWithConn(cc grpc.ClientConnInterface) *ModelClient {
	return &ModelClient{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *ModelClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region predict
// PredictProba sends one feature vector and returns the model's label probabilities.
func (c *ModelClient) PredictProba(ctx context.Context, features []float64, columns []string) ([]string, []float64, error) {
	feats := make([]any, len(features))
	for i, f := range features {
		feats[i] = f
	}
	cols := make([]any, len(columns))
	for i, col := range columns {
		cols[i] = col
	}
	req, err := structpb.NewStruct(map[string]any{
		"features": feats,
		"columns":  cols,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build predict request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, PredictMethod, req, resp); err != nil {
		return nil, nil, fmt.Errorf("predict rpc: %w", err)
	}

	labelVals := resp.GetFields()["labels"].GetListValue().GetValues()
	probVals := resp.GetFields()["probabilities"].GetListValue().GetValues()
	if len(labelVals) != len(probVals) {
		return nil, nil, fmt.Errorf("predict rpc: %d labels, %d probabilities", len(labelVals), len(probVals))
	}

	labels := make([]string, len(labelVals))
	probs := make([]float64, len(probVals))
	for i := range labelVals {
		labels[i] = labelVals[i].GetStringValue()
		probs[i] = probVals[i].GetNumberValue()
	}
	return labels, probs, nil
}

// #endregion predict
