package protocol

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rest-rpc/codec"
	"rest-rpc/message"
)

func codecs() []codec.Codec {
	return []codec.Codec{&codec.JSONCodec{}, &codec.MsgpackCodec{}}
}

func encode(t *testing.T, c codec.Codec, v any) []byte {
	t.Helper()
	data, err := c.Encode(v)
	require.NoError(t, err)
	return data
}

func requestElements(t *testing.T, c codec.Codec, wire []byte, name string) []any {
	t.Helper()
	doc, err := c.Parse(wire)
	require.NoError(t, err)
	require.Equal(t, []string{name}, doc.Keys())
	items, err := doc.Elements(name)
	require.NoError(t, err)
	return items
}

func ints(t *testing.T, items []any) []int {
	t.Helper()
	out := make([]int, 0, len(items))
	for _, item := range items {
		doc, err := (&codec.JSONCodec{}).Parse([]byte(`{"v":` + mustJSON(t, item) + `}`))
		require.NoError(t, err)
		n, err := doc.Int("v")
		require.NoError(t, err)
		out = append(out, n)
	}
	return out
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := (&codec.JSONCodec{}).Encode(v)
	require.NoError(t, err)
	return string(data)
}

func TestAddRequestShape(t *testing.T) {
	add := Define[Args2[int, int], int]("add")
	wire, err := add.MakeRequest(Arg2(2, 3))
	require.NoError(t, err)
	assert.JSONEq(t, `{"add":[2,3]}`, string(wire))

	for _, c := range codecs() {
		t.Run(c.Type().String(), func(t *testing.T) {
			add := Define[Args2[int, int], int]("add", WithCodec(c))
			wire, err := add.MakeRequest(Arg2(2, 3))
			require.NoError(t, err)
			assert.Equal(t, []int{2, 3}, ints(t, requestElements(t, c, wire, "add")))
		})
	}
}

func TestAddParseResponse(t *testing.T) {
	for _, c := range codecs() {
		t.Run(c.Type().String(), func(t *testing.T) {
			add := Define[Args2[int, int], int]("add", WithCodec(c))

			sum, err := add.ParseResponse(encode(t, c, map[string]any{"code": 0, "result": 5}))
			require.NoError(t, err)
			assert.Equal(t, 5, sum)

			_, err = add.ParseResponse(encode(t, c, map[string]any{"code": 1}))
			var remote *RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Equal(t, message.CodeFail, remote.Code)
			assert.Equal(t, "add", remote.Endpoint)
		})
	}
}

func TestZeroArgumentRequest(t *testing.T) {
	ping := Define[Args0, bool]("ping")
	wire, err := ping.MakeRequest(Args0{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ping":[]}`, string(wire))

	mp := Define[Args0, bool]("ping", WithCodec(&codec.MsgpackCodec{}))
	wire, err = mp.MakeRequest(Args0{})
	require.NoError(t, err)
	assert.Empty(t, requestElements(t, mp.Codec(), wire, "ping"))
}

func TestRequestIsKeyedByName(t *testing.T) {
	for _, c := range codecs() {
		t.Run(c.Type().String(), func(t *testing.T) {
			w0, err := Define[Args0, bool]("ping", WithCodec(c)).MakeRequest(Args0{})
			require.NoError(t, err)
			requestElements(t, c, w0, "ping")

			w1, err := Define[Args1[string], string]("greet", WithCodec(c)).MakeRequest(Arg1("bob"))
			require.NoError(t, err)
			assert.Equal(t, []any{"bob"}, requestElements(t, c, w1, "greet"))

			w3, err := Define[Args3[int, string, bool], int]("mix", WithCodec(c)).MakeRequest(Arg3(1, "a", true))
			require.NoError(t, err)
			items := requestElements(t, c, w3, "mix")
			require.Len(t, items, 3)
			assert.Equal(t, "a", items[1])
			assert.Equal(t, true, items[2])
		})
	}
}

type point struct {
	X int    `json:"x" msgpack:"x"`
	Y int    `json:"y" msgpack:"y"`
	L string `json:"l" msgpack:"l"`
}

func roundTrip[T any](t *testing.T, c codec.Codec, v T) {
	t.Helper()
	def := Define[Args0, T]("echo", WithCodec(c))
	got, err := def.ParseResponse(encode(t, c, message.Response[T]{Code: message.CodeOK, Result: v}))
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestResponseRoundTrip(t *testing.T) {
	for _, c := range codecs() {
		t.Run(c.Type().String(), func(t *testing.T) {
			roundTrip(t, c, 42)
			roundTrip(t, c, -7)
			roundTrip(t, c, "hello")
			roundTrip(t, c, "")
			roundTrip(t, c, true)
			roundTrip(t, c, 2.5)
			roundTrip(t, c, []string{"a", "b"})
			roundTrip(t, c, map[string]int{"a": 1})
			roundTrip(t, c, point{X: 1, Y: -2, L: "p"})
		})
	}
}

func TestParseResponseGatesOnCode(t *testing.T) {
	add := Define[Args2[int, int], int]("add")

	cases := []struct {
		name    string
		wire    string
		code    message.Code
		message string
	}{
		{"fail with payload", `{"code":1,"result":5}`, message.CodeFail, ""},
		{"exception text", `{"code":2,"result":"boom"}`, message.CodeException, "boom"},
		{"args error", `{"code":3,"result":"want 2 arguments"}`, message.CodeArgsError, "want 2 arguments"},
		{"application code", `{"code":42,"result":null}`, message.Code(42), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := add.ParseResponse([]byte(tc.wire))
			var remote *RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Equal(t, tc.code, remote.Code)
			assert.Equal(t, tc.message, remote.Message)

			var perr *ProtocolError
			assert.False(t, errors.As(err, &perr))
		})
	}
}

func TestParseResponseMalformed(t *testing.T) {
	add := Define[Args2[int, int], int]("add")

	cases := []struct {
		name string
		wire string
		want error
	}{
		{"not a document", `nope`, codec.ErrNotDocument},
		{"empty", ``, codec.ErrNotDocument},
		{"array", `[0,5]`, codec.ErrNotDocument},
		{"missing code", `{"result":5}`, ErrMissingCode},
		{"string code", `{"code":"0","result":5}`, codec.ErrFieldType},
		{"fractional code", `{"code":0.5,"result":5}`, codec.ErrFieldType},
		{"missing result", `{"code":0}`, ErrMissingResult},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := add.ParseResponse([]byte(tc.wire))
			var perr *ProtocolError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "add", perr.Endpoint)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("wrong result type", func(t *testing.T) {
		_, err := add.ParseResponse([]byte(`{"code":0,"result":"five"}`))
		var perr *ProtocolError
		require.ErrorAs(t, err, &perr)
	})
}

func TestDefinitionAccessors(t *testing.T) {
	add := Define[Args2[int, int], int]("add")
	assert.Equal(t, "add", add.Name())
	assert.Equal(t, KindDefault, add.Kind())
	assert.Equal(t, 2, add.Arity())
	assert.Equal(t, codec.CodecTypeJSON, add.Codec().Type())

	assert.Equal(t, 0, Define[Args0, bool]("ping").Arity())
	assert.Equal(t, 4, Define[Args4[int, int, int, int], int]("sum4").Arity())

	assert.Panics(t, func() { Define[Args0, bool]("") })
}

func TestDefinitionConcurrentUse(t *testing.T) {
	add := Define[Args2[int, int], int]("add")
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wire, err := add.MakeRequest(Arg2(i, i))
			assert.NoError(t, err)
			assert.Contains(t, string(wire), `"add"`)
			sum, err := add.ParseResponse([]byte(`{"code":0,"result":` + mustJSON(t, 2*i) + `}`))
			assert.NoError(t, err)
			assert.Equal(t, 2*i, sum)
		}(i)
	}
	wg.Wait()
}

func TestParseResponseReadsExactResultKey(t *testing.T) {
	for _, c := range codecs() {
		t.Run(c.Type().String(), func(t *testing.T) {
			add := Define[Args2[int, int], int]("add", WithCodec(c))

			sum, err := add.ParseResponse(encode(t, c, map[string]any{"code": 0, "result": 5, "RESULT": 99}))
			require.NoError(t, err)
			assert.Equal(t, 5, sum)

			sum, err = add.ParseResponse(encode(t, c, map[string]any{"code": 0, "Result": 99, "result": 5}))
			require.NoError(t, err)
			assert.Equal(t, 5, sum)

			_, err = add.ParseResponse(encode(t, c, map[string]any{"code": 0, "Result": 99}))
			assert.ErrorIs(t, err, ErrMissingResult)
		})
	}
}
