package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVStreamer(t *testing.T) {
	var buf bytes.Buffer
	s := NewCSVStreamer(&buf)
	require.NoError(t, s.Comment("as of 2024-03-31"))
	require.NoError(t, s.Row("code", "name"))
	require.NoError(t, s.Row("11", "Cash, petty"))
	require.Empty(t, buf.String(), "rows stay buffered until flushed")
	require.NoError(t, s.Flush())
	require.Equal(t, "# as of 2024-03-31\r\ncode,name\r\n11,\"Cash, petty\"\r\n", buf.String())

	var nilStreamer *CSVStreamer
	require.Error(t, nilStreamer.Row("x"))
}
