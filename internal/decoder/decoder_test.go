package decoder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	for _, tt := range []struct {
		name    string
		payload string
		want    Result
	}{
		{name: "plain number", payload: "42.5", want: Result{Kind: Number, NumberValue: 42.5}},
		{name: "plain garbage", payload: "not-a-number", want: Result{Kind: Undecodable}},
		{name: "nested message.message numeric", payload: `{"message":{"message":12.3}}`, want: Result{Kind: Number, NumberValue: 12.3}},
		{name: "nested message.message passthrough", payload: `{"message":{"message":"on"}}`, want: Result{Kind: Passthrough, RawValue: "on"}},
		{name: "message field numeric string", payload: `{"message":"7"}`, want: Result{Kind: Number, NumberValue: 7}},
		{name: "message field non numeric", payload: `{"message":"hello"}`, want: Result{Kind: Passthrough, RawValue: "hello"}},
		{name: "whole object numeric-less", payload: `{"other":1}`, want: Result{Kind: Undecodable}},
		{name: "NaN rejected", payload: "NaN", want: Result{Kind: Undecodable}},
		{name: "empty payload", payload: "", want: Result{Kind: Undecodable}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode([]byte(tt.payload))
			require.Equal(t, tt.want.Kind, got.Kind)
			if tt.want.Kind == Number {
				require.InDelta(t, tt.want.NumberValue, got.NumberValue, 0.0001)
			}
			if tt.want.Kind == Passthrough {
				require.Equal(t, tt.want.RawValue, got.RawValue)
			}
		})
	}
}

func TestDecodeIsNumber(t *testing.T) {
	require.True(t, Decode([]byte("10")).IsNumber())
	require.False(t, Decode([]byte("abc")).IsNumber())
}
