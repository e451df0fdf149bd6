package rpcsvc_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unfsd-go/unfsd/internal/rpcsvc"
)

func echoTable() rpcsvc.Table {
	return rpcsvc.Table{
		1: {
			Name:   "ECHO",
			Decode: func(data []byte) (any, error) { return string(data), nil },
			Encode: func(result any) ([]byte, error) { return []byte(result.(string)), nil },
			Handle: func(_ *rpcsvc.CallInfo, args any) (any, error) { return args.(string) + "!", nil },
		},
		2: {
			Name:   "BADDECODE",
			Decode: func([]byte) (any, error) { return nil, errors.New("boom") },
			Encode: func(any) ([]byte, error) { return nil, nil },
			Handle: func(*rpcsvc.CallInfo, any) (any, error) { return nil, nil },
		},
		3: {
			Name:   "BADHANDLE",
			Decode: func(data []byte) (any, error) { return data, nil },
			Encode: func(any) ([]byte, error) { return nil, nil },
			Handle: func(*rpcsvc.CallInfo, any) (any, error) { return nil, errors.New("fail") },
		},
		4: {
			Name:    "RELEASED",
			Decode:  func(data []byte) (any, error) { return data, nil },
			Encode:  func(any) ([]byte, error) { return []byte("ok"), nil },
			Handle:  func(*rpcsvc.CallInfo, any) (any, error) { return nil, nil },
			Release: func(any) {},
		},
	}
}

func TestDispatch_Success(t *testing.T) {
	table := echoTable()
	reply, fault, ok := rpcsvc.Dispatch(table, 1, &rpcsvc.CallInfo{}, []byte("hi"))
	require.True(t, ok)
	assert.Equal(t, uint32(rpcsvc.AcceptSuccess), fault)
	assert.Equal(t, "hi!", string(reply))
}

func TestDispatch_UnknownProcedure(t *testing.T) {
	table := echoTable()
	_, fault, ok := rpcsvc.Dispatch(table, 999, &rpcsvc.CallInfo{}, nil)
	assert.False(t, ok)
	assert.Equal(t, uint32(rpcsvc.AcceptProcUnavail), fault)
}

func TestDispatch_DecodeFailureIsGarbageArgs(t *testing.T) {
	table := echoTable()
	_, fault, ok := rpcsvc.Dispatch(table, 2, &rpcsvc.CallInfo{}, nil)
	assert.False(t, ok)
	assert.Equal(t, uint32(rpcsvc.AcceptGarbageArgs), fault)
}

func TestDispatch_HandlerErrorIsSystemErr(t *testing.T) {
	table := echoTable()
	_, fault, ok := rpcsvc.Dispatch(table, 3, &rpcsvc.CallInfo{}, []byte("x"))
	assert.False(t, ok)
	assert.Equal(t, uint32(rpcsvc.AcceptSystemErr), fault)
}

func TestDispatch_ReleaseAlwaysRuns(t *testing.T) {
	released := false
	table := echoTable()
	table[4].Release = func(any) { released = true }

	_, _, ok := rpcsvc.Dispatch(table, 4, &rpcsvc.CallInfo{}, []byte("x"))
	assert.True(t, ok)
	assert.True(t, released)
}

func TestDispatch_Null(t *testing.T) {
	table := rpcsvc.Table{0: rpcsvc.Null}
	reply, fault, ok := rpcsvc.Dispatch(table, 0, &rpcsvc.CallInfo{}, nil)
	assert.True(t, ok)
	assert.Equal(t, uint32(rpcsvc.AcceptSuccess), fault)
	assert.Empty(t, reply)
}
