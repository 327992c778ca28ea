package webos

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"torrplay.app/player/internal/domain"
)

type result struct {
	body json.RawMessage
	err  error
}

func call(t *testing.T, b *Bridge, req domain.ServiceRequest) result {
	t.Helper()
	ch := make(chan result, 2)
	b.Call(context.Background(), req,
		func(body json.RawMessage) { ch <- result{body: body} },
		func(err error) { ch <- result{err: err} },
	)
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("bridge never replied")
		return result{}
	}
}

func launchRequest() domain.ServiceRequest {
	return domain.ServiceRequest{
		Service: "luna://com.webos.applicationManager",
		Method:  "launch",
		Parameters: domain.LaunchParams{
			ID: "com.webos.app.mediadiscovery",
			Params: domain.LaunchPayload{Payload: []domain.MediaPayload{{
				FullPath:         "http://host/stream/abc",
				FileName:         " ",
				LastPlayPosition: -1,
			}}},
		},
	}
}

func TestCallSuccess(t *testing.T) {
	var gotArgs []string
	b := NewBridge("", func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "luna-send", name)
		gotArgs = args
		return []byte("{\n  \"returnValue\": true,\n  \"processId\": \"1001\"\n}\n"), nil
	})

	r := call(t, b, launchRequest())
	require.NoError(t, r.err)
	assert.Contains(t, string(r.body), `"processId"`)

	require.Len(t, gotArgs, 5)
	assert.Equal(t, []string{"-n", "1", "-f", "luna://com.webos.applicationManager/launch"}, gotArgs[:4])

	var params domain.LaunchParams
	require.NoError(t, json.Unmarshal([]byte(gotArgs[4]), &params))
	assert.Equal(t, "com.webos.app.mediadiscovery", params.ID)
	assert.Equal(t, -1, params.Params.Payload[0].LastPlayPosition)
}

func TestCallServiceFailure(t *testing.T) {
	b := NewBridge("luna-send", func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"returnValue": false, "errorCode": -101, "errorText": "app not found"}`), nil
	})

	r := call(t, b, launchRequest())
	var svcErr *ServiceError
	require.ErrorAs(t, r.err, &svcErr)
	assert.Equal(t, "-101", svcErr.Code)
	assert.Equal(t, "app not found", svcErr.Text)
}

func TestCallTransportFailures(t *testing.T) {
	cases := map[string]func(context.Context, string, ...string) ([]byte, error){
		"exec error": func(context.Context, string, ...string) ([]byte, error) {
			return nil, errors.New("luna-send failed")
		},
		"garbage": func(context.Context, string, ...string) ([]byte, error) {
			return []byte("not json"), nil
		},
		"missing return value": func(context.Context, string, ...string) ([]byte, error) {
			return []byte(`{}`), nil
		},
	}
	for name, run := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, call(t, NewBridge("", run), launchRequest()).err)
		})
	}
}
