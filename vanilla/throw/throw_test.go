// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package throw

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCallerCapture(t *testing.T) {
	err := IllegalValue()
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "throw.TestCallerCapture"), err.Error())

	err = IllegalState()
	require.True(t, strings.HasPrefix(err.Error(), "illegal state"), err.Error())
}

func TestWrap(t *testing.T) {
	require.Nil(t, W(nil, "ignored"))
	require.Nil(t, WithDetails(nil, "ignored"))

	err := W(io.EOF, "readFailed", struct{ count int }{7})
	require.True(t, errors.Is(err, io.EOF))
	require.Contains(t, err.Error(), "readFailed")
	require.Contains(t, err.Error(), "7")
}

func TestNew(t *testing.T) {
	require.EqualError(t, New("testMsg"), "testMsg")
	require.Contains(t, E("testMsg", 11).Error(), "11")
}
