// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeBackend only records the configuration it was created with.
type fakeBackend struct {
	Backend
	config string
}

func TestNewWithConfig(t *testing.T) {
	_, err := NewWithConfig("")
	require.ErrorContains(t, err, "no registered backends")

	Register("fake", func(config string) (Backend, error) {
		if config == "fail" {
			return nil, errors.New("failed on purpose")
		}
		return &fakeBackend{config: config}, nil
	})
	Register("other", func(config string) (Backend, error) {
		return &fakeBackend{config: "other:" + config}, nil
	})
	require.ElementsMatch(t, []string{"fake", "other"}, List())

	// Empty config: the first registered.
	b, err := NewWithConfig("")
	require.NoError(t, err)
	require.Equal(t, "", b.(*fakeBackend).config)

	b, err = NewWithConfig("fake:a=1,b")
	require.NoError(t, err)
	require.Equal(t, "a=1,b", b.(*fakeBackend).config)

	b, err = NewWithConfig("other")
	require.NoError(t, err)
	require.Equal(t, "other:", b.(*fakeBackend).config)

	_, err = NewWithConfig("unknown:x")
	require.ErrorContains(t, err, `can't find backend "unknown"`)

	_, err = NewWithConfig("fake:fail")
	require.ErrorContains(t, err, "failed on purpose")

	// Environment variable takes precedence over DefaultConfig.
	DefaultConfig = "other:default"
	defer func() { DefaultConfig = "" }()
	t.Setenv(ConfigEnvVar, "") // Restores the original value at the end of the test.
	require.NoError(t, os.Unsetenv(ConfigEnvVar))
	b, err = New()
	require.NoError(t, err)
	require.Equal(t, "other:default", b.(*fakeBackend).config)

	t.Setenv(ConfigEnvVar, "fake:from_env")
	b, err = New()
	require.NoError(t, err)
	require.Equal(t, "from_env", b.(*fakeBackend).config)
}
