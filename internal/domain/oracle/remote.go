package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"leaf-diagnosis-server/internal/platform/errors"
)

// RemoteModel calls a model hosted behind the TF-Serving REST predict API:
// POST {base}/v1/models/{name}:predict with {"instances": [...]}.
type RemoteModel struct {
	name   string
	client *resty.Client
}

type predictRequest struct {
	Instances []interface{} `json:"instances"`
}

type predictResponse struct {
	Predictions interface{} `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// NewRemoteModel builds a client for one model. The per-call deadline comes from ctx.
func NewRemoteModel(baseURL, modelName string) *RemoteModel {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	client.SetJSONMarshaler(sonic.Marshal)
	client.SetJSONUnmarshaler(sonic.Unmarshal)

	return &RemoteModel{name: modelName, client: client}
}

func (m *RemoteModel) Name() string { return m.name }

func (m *RemoteModel) Predict(ctx context.Context, input Tensor) (Tensor, error) {
	if err := input.Validate(); err != nil {
		return Tensor{}, errors.Wrap(errors.KindInference, "oracle.remote", "invalid input tensor", err)
	}

	instance := input.DropBatch()
	body := predictRequest{Instances: []interface{}{nest(instance.Shape, instance.Data)}}

	var out predictResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("/v1/models/%s:predict", m.name))
	if err != nil {
		return Tensor{}, errors.Wrap(errors.KindTransport, "oracle.remote", fmt.Sprintf("call %s", m.name), err)
	}
	if resp.IsError() {
		msg := out.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return Tensor{}, errors.New(errors.KindTransport, "oracle.remote",
			fmt.Sprintf("model %s returned status %d: %s", m.name, resp.StatusCode(), msg))
	}
	if out.Predictions == nil {
		return Tensor{}, errors.New(errors.KindInference, "oracle.remote", fmt.Sprintf("model %s returned no predictions", m.name))
	}

	shape, data, err := flatten(out.Predictions)
	if err != nil {
		return Tensor{}, errors.Wrap(errors.KindInference, "oracle.remote", fmt.Sprintf("model %s returned malformed predictions", m.name), err)
	}
	return Tensor{Shape: shape, Data: data}, nil
}

// nest turns flat row-major data into nested slices following shape.
func nest(shape []int, data []float32) interface{} {
	if len(shape) == 0 {
		return data[0]
	}
	if len(shape) == 1 {
		return data[:shape[0]]
	}
	stride := len(data) / shape[0]
	out := make([]interface{}, shape[0])
	for i := range out {
		out[i] = nest(shape[1:], data[i*stride:(i+1)*stride])
	}
	return out
}

// flatten is the inverse of nest for decoded JSON; ragged arrays are rejected.
func flatten(v interface{}) ([]int, []float32, error) {
	var shape []int
	var data []float32

	var walk func(v interface{}, depth int) error
	walk = func(v interface{}, depth int) error {
		switch x := v.(type) {
		case []interface{}:
			if depth == len(shape) {
				shape = append(shape, len(x))
			} else if depth > len(shape) || shape[depth] != len(x) {
				return fmt.Errorf("ragged array at depth %d", depth)
			}
			for _, item := range x {
				if err := walk(item, depth+1); err != nil {
					return err
				}
			}
			return nil
		case float64:
			if depth != len(shape) {
				return fmt.Errorf("scalar at depth %d, expected %d", depth, len(shape))
			}
			data = append(data, float32(x))
			return nil
		default:
			return fmt.Errorf("unexpected %T in predictions", v)
		}
	}

	if err := walk(v, 0); err != nil {
		return nil, nil, err
	}
	if len(shape) == 0 || len(data) == 0 {
		return nil, nil, fmt.Errorf("empty predictions")
	}
	if t := (Tensor{Shape: shape, Data: data}); t.Validate() != nil {
		return nil, nil, fmt.Errorf("ragged predictions for shape %v", shape)
	}
	return shape, data, nil
}

// pingTimeout bounds Ready.
const pingTimeout = 3 * time.Second

// Ready queries the model status endpoint; used by the readiness report.
func (m *RemoteModel) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp, err := m.client.R().SetContext(ctx).Get(fmt.Sprintf("/v1/models/%s", m.name))
	if err != nil {
		return errors.Wrap(errors.KindTransport, "oracle.ready", fmt.Sprintf("reach %s", m.name), err)
	}
	if resp.IsError() {
		return errors.New(errors.KindTransport, "oracle.ready", fmt.Sprintf("model %s status %d", m.name, resp.StatusCode()))
	}
	return nil
}
