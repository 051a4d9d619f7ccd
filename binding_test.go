package mqroute

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sensorTelemetry struct {
	SensorID    string
	Temperature float64
	Humidity    float64
	LightLevel  int
}

func newTestMessage(pattern, topic, payload string) (*Message, *[]*PayloadDecodeError) {
	route := &Route{pattern: MustCompile(pattern)}
	params, ok := route.pattern.Match(topic)
	if !ok {
		panic("test message does not match its pattern")
	}
	var decodeErrs []*PayloadDecodeError
	return &Message{
		Topic:   topic,
		Payload: []byte(payload),
		Params:  params,
		Route:   route,
		decodeFailed: func(err *PayloadDecodeError) {
			decodeErrs = append(decodeErrs, err)
		},
	}, &decodeErrs
}

func TestArgBindRouteParameter(t *testing.T) {
	msg, _ := newTestMessage("b/{name}/{floor}/{ratio}/{on}/{wait}/{big}", "b/hq/3/0.75/true/1m30s/18446744073709551615", "")

	name, err := Arg[string]("name").Bind(msg)
	require.NoError(t, err)
	assert.Equal(t, "hq", name)

	floor, err := Arg[int]("floor").Bind(msg)
	require.NoError(t, err)
	assert.Equal(t, 3, floor)

	floor8, err := Arg[int8]("floor").Bind(msg)
	require.NoError(t, err)
	assert.Equal(t, int8(3), floor8)

	ratio, err := Arg[float64]("ratio").Bind(msg)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, ratio, 1e-9)

	ratio32, err := Arg[float32]("ratio").Bind(msg)
	require.NoError(t, err)
	assert.InDelta(t, float32(0.75), ratio32, 1e-6)

	on, err := Arg[bool]("on").Bind(msg)
	require.NoError(t, err)
	assert.True(t, on)

	wait, err := Arg[time.Duration]("wait").Bind(msg)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, wait)

	big, err := Arg[uint64]("big").Bind(msg)
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), big)

	raw, err := Arg[[]byte]("name").Bind(msg)
	require.NoError(t, err)
	assert.Equal(t, []byte("hq"), raw)
}

func TestArgBindConversionFailure(t *testing.T) {
	tests := []struct {
		name    string
		bind    func(*Message) error
		wantErr error
	}{
		{"int", func(m *Message) error { _, err := Arg[int]("v").Bind(m); return err }, nil},
		{"uint8", func(m *Message) error { _, err := Arg[uint8]("v").Bind(m); return err }, nil},
		{"bool", func(m *Message) error { _, err := Arg[bool]("v").Bind(m); return err }, nil},
		{"float", func(m *Message) error { _, err := Arg[float64]("v").Bind(m); return err }, nil},
		{"duration", func(m *Message) error { _, err := Arg[time.Duration]("v").Bind(m); return err }, nil},
		{"struct", func(m *Message) error { _, err := Arg[sensorTelemetry]("v").Bind(m); return err }, ErrUnsupportedType},
		{"context", func(m *Message) error { _, err := Arg[context.Context]("v").Bind(m); return err }, ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, _ := newTestMessage("x/{v}", "x/abc999", "{}")
			err := tt.bind(msg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBinding)

			var bindErr *BindingError
			require.True(t, errors.As(err, &bindErr))
			assert.Equal(t, "x/{v}", bindErr.Route)
			assert.Equal(t, "v", bindErr.Arg)
			assert.Equal(t, "abc999", bindErr.Value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestArgBindTopicPayloadAndContext(t *testing.T) {
	msg, _ := newTestMessage("station/{id}/status", "station/7/status", "online")

	topic, err := TopicArg.Bind(msg)
	require.NoError(t, err)
	assert.Equal(t, "station/7/status", topic)

	payload, err := PayloadArg.Bind(msg)
	require.NoError(t, err)
	assert.Equal(t, "online", payload)

	raw, err := RawPayloadArg.Bind(msg)
	require.NoError(t, err)
	assert.Equal(t, []byte("online"), raw)

	ctx, err := ContextArg.Bind(msg)
	require.NoError(t, err)
	require.NotNil(t, ctx)
	assert.NoError(t, ctx.Err())
	assert.Nil(t, ctx.Done())
}

func TestArgBindRouteParameterTakesPrecedence(t *testing.T) {
	msg, _ := newTestMessage("echo/{topic}/{payload}", "echo/t1/p1", "body")

	topic, err := TopicArg.Bind(msg)
	require.NoError(t, err)
	assert.Equal(t, "t1", topic)

	payload, err := PayloadArg.Bind(msg)
	require.NoError(t, err)
	assert.Equal(t, "p1", payload)
}

func TestArgBindDecodesPayload(t *testing.T) {
	msg, decodeErrs := newTestMessage("station/+/sensor/{sensorId}/telemetry",
		"station/north/sensor/s7/telemetry",
		`{"sensorid":"s7","TEMPERATURE":21.5,"humidity":40,"lightLevel":300,"unknown":true}`)

	data, err := Arg[sensorTelemetry]("data").Bind(msg)
	require.NoError(t, err)
	assert.Empty(t, *decodeErrs)
	assert.Equal(t, sensorTelemetry{SensorID: "s7", Temperature: 21.5, Humidity: 40, LightLevel: 300}, data)

	ptr, err := Arg[*sensorTelemetry]("data").Bind(msg)
	require.NoError(t, err)
	require.NotNil(t, ptr)
	assert.Equal(t, "s7", ptr.SensorID)

	generic, err := Arg[map[string]any]("data").Bind(msg)
	require.NoError(t, err)
	assert.Equal(t, 21.5, generic["TEMPERATURE"])
}

func TestArgBindMalformedPayloadBindsZeroValue(t *testing.T) {
	msg, decodeErrs := newTestMessage("t/{id}", "t/1", `{"temperature": "not a number"`)

	data, err := Arg[sensorTelemetry]("data").Bind(msg)
	require.NoError(t, err)
	assert.Equal(t, sensorTelemetry{}, data)

	ptr, err := Arg[*sensorTelemetry]("data").Bind(msg)
	require.NoError(t, err)
	assert.Nil(t, ptr)

	require.Len(t, *decodeErrs, 2)
	first := (*decodeErrs)[0]
	assert.ErrorIs(t, first, ErrPayloadDecode)
	assert.Equal(t, "t/{id}", first.Route)
	assert.Equal(t, "data", first.Arg)
	assert.Equal(t, "mqroute.sensorTelemetry", first.Type)
	assert.Equal(t, "*mqroute.sensorTelemetry", (*decodeErrs)[1].Type)
}

func TestArgBindPartialDecodeIsDiscarded(t *testing.T) {
	// encoding/json fills fields before it hits the type error
	msg, decodeErrs := newTestMessage("t", "t", `{"sensorId":"s1","temperature":"hot"}`)

	data, err := Arg[sensorTelemetry]("data").Bind(msg)
	require.NoError(t, err)
	assert.Equal(t, sensorTelemetry{}, data)
	assert.Len(t, *decodeErrs, 1)
}

func TestArgBindWithoutDecodeReporter(t *testing.T) {
	msg := &Message{Topic: "t", Payload: []byte("{")}

	data, err := Arg[sensorTelemetry]("data").Bind(msg)
	require.NoError(t, err)
	assert.Equal(t, sensorTelemetry{}, data)
}

func TestFuncAdapters(t *testing.T) {
	msg, _ := newTestMessage("b/{building}/{floor}/{room}", "b/hq/3/lab", `{"temperature":20}`)
	ctx := context.Background()

	t.Run("Func0", func(t *testing.T) {
		called := false
		err := Func0(func() error { called = true; return nil }).HandleMessage(ctx, msg)
		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("Func1", func(t *testing.T) {
		var got string
		err := Func1(Arg[string]("building"), func(b string) error { got = b; return nil }).HandleMessage(ctx, msg)
		require.NoError(t, err)
		assert.Equal(t, "hq", got)
	})

	t.Run("Func2", func(t *testing.T) {
		var floor int
		var data sensorTelemetry
		h := Func2(Arg[int]("floor"), Arg[sensorTelemetry]("data"), func(f int, d sensorTelemetry) error {
			floor, data = f, d
			return nil
		})
		require.NoError(t, h.HandleMessage(ctx, msg))
		assert.Equal(t, 3, floor)
		assert.Equal(t, 20.0, data.Temperature)
	})

	t.Run("Func3", func(t *testing.T) {
		var got []string
		h := Func3(Arg[string]("building"), Arg[string]("room"), TopicArg, func(b, r, topic string) error {
			got = []string{b, r, topic}
			return nil
		})
		require.NoError(t, h.HandleMessage(ctx, msg))
		assert.Equal(t, []string{"hq", "lab", "b/hq/3/lab"}, got)
	})

	t.Run("Func4", func(t *testing.T) {
		var got string
		h := Func4(ContextArg, Arg[string]("building"), Arg[uint]("floor"), PayloadArg,
			func(ctx context.Context, b string, f uint, payload string) error {
				got = payload
				return ctx.Err()
			})
		require.NoError(t, h.HandleMessage(ctx, msg))
		assert.Equal(t, `{"temperature":20}`, got)
	})

	t.Run("binding error skips the function", func(t *testing.T) {
		called := false
		h := Func2(Arg[string]("building"), Arg[int]("room"), func(string, int) error {
			called = true
			return nil
		})
		err := h.HandleMessage(ctx, msg)
		assert.ErrorIs(t, err, ErrBinding)
		assert.False(t, called)
	})

	t.Run("handler error is returned", func(t *testing.T) {
		boom := errors.New("boom")
		err := Func1(Arg[string]("room"), func(string) error { return boom }).HandleMessage(ctx, msg)
		assert.ErrorIs(t, err, boom)
	})
}

func TestArgName(t *testing.T) {
	assert.Equal(t, "sensorId", Arg[string]("sensorId").Name())
	assert.Equal(t, "topic", TopicArg.Name())
	assert.Equal(t, "payload", RawPayloadArg.Name())
}
