package chrome

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenFailsWhenDebuggerUnreachable(t *testing.T) {
	// grab a free port and close it so nothing listens there
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	p, err := Open(context.Background(), "chrome", Options{RemoteURL: "ws://" + addr + "/devtools/browser/x"}, "")
	require.Error(t, err)
	require.Nil(t, p)
	require.ErrorContains(t, err, "chrome: start")
}
