package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteList(t *testing.T) {
	items := []string{"Mango", "Banana"}

	var buf bytes.Buffer
	require.NoError(t, writeList(&buf, "crops", items, "json"))
	assert.JSONEq(t, `{"crops":["Mango","Banana"]}`, buf.String())

	buf.Reset()
	require.NoError(t, writeList(&buf, "crops", items, "yaml"))
	assert.Equal(t, "crops:\n    - Mango\n    - Banana\n", buf.String())

	buf.Reset()
	require.NoError(t, writeList(&buf, "crops", items, "human"))
	assert.Equal(t, "• Mango\n• Banana\n", buf.String())

	assert.Error(t, writeList(&buf, "crops", items, "csv"))
}
