package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTriggerDigestRejectsInvalidCompany(t *testing.T) {
	c, err := NewJobsCLI("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.TriggerDigest(context.Background(), 0, "")
	require.Error(t, err)
	_, err = c.TriggerDigest(context.Background(), -4, "x@y.pe")
	require.Error(t, err)
}

func TestNilGuards(t *testing.T) {
	var c *JobsCLI
	_, err := c.TriggerDigest(context.Background(), 1, "")
	require.Error(t, err)
	_, err = c.InspectQueues(context.Background())
	require.Error(t, err)
	_, err = c.ListScheduled(context.Background(), 5)
	require.Error(t, err)
}
