package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quipu-erp/quipu-erp/internal/app"
	_ "github.com/quipu-erp/quipu-erp/internal/testing/guard"
)

func TestMainExitsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	main()
}
