package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/echokernel/kernel"
	"github.com/hupe1980/echokernel/model"
)

// NewKernel returns a kernel backed by a scripted mock model. The provider
// timeout is disabled unless optFns set one.
func NewKernel(t testing.TB, optFns ...func(o *kernel.Options)) (*kernel.Kernel, *model.MockModel) {
	t.Helper()

	k := kernel.New(append([]func(o *kernel.Options){func(o *kernel.Options) { o.ProviderTimeout = 0 }}, optFns...)...)
	m := model.NewMockModel("mock", "mock")
	require.NoError(t, k.RegisterProvider(kernel.TextGeneration, m))

	return k, m
}
