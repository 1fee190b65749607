package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronwong1989/gomodbus/capture"
	"github.com/aaronwong1989/gomodbus/codec/tcp"
)

func TestFrameTable(t *testing.T) {
	res := capture.Result{Frames: []capture.Frame{
		{Timestamp: time.Unix(0, 0), IsRequest: true, Header: tcp.NewHeader(1, 2, 5), Pdu: []byte{0x03, 0x00, 0x00, 0x00, 0x01}},
		{Timestamp: time.Unix(0, 0), Header: tcp.NewHeader(1, 2, 2), Pdu: []byte{0x83, 0x02}},
	}}
	data := frameTable(res, 0)
	require.Len(t, data, 3)
	assert.Equal(t, "req", data[1][3])
	assert.Equal(t, "0x03", data[1][6])
	assert.Equal(t, "0x83 exc", data[2][6])
	assert.Equal(t, "8302", data[2][7])

	assert.Len(t, frameTable(res, 1), 2)
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "inspect", "send"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	inspect, _, err := root.Find([]string{"inspect"})
	require.NoError(t, err)
	assert.Error(t, inspect.Args(inspect, nil))

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("config"))
}
