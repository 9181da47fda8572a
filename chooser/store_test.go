// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package chooser_test

import (
	"context"
	stderr "errors"
	"testing"

	"github.com/Azure/iot-operations-sdks/go/services/statestore"
	"github.com/sakura/springbreak/chooser"
	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/language"
	"github.com/stretchr/testify/require"
)

type kv struct {
	data map[string][]byte
	err  error
}

func (m *kv) Get(
	_ context.Context,
	key string,
	_ ...statestore.GetOption,
) (*statestore.Response[[]byte], error) {
	if m.err != nil {
		return nil, m.err
	}
	return &statestore.Response[[]byte]{Value: m.data[key]}, nil
}

func (m *kv) Set(
	_ context.Context,
	key string,
	val []byte,
	_ ...statestore.SetOption,
) (*statestore.Response[bool], error) {
	if m.err != nil {
		return nil, m.err
	}
	m.data[key] = val
	return &statestore.Response[bool]{Value: true}, nil
}

func TestStateStore(t *testing.T) {
	backing := &kv{data: map[string][]byte{}}
	s := chooser.NewStateStore(backing, nil)
	ctx := context.Background()

	_, err := s.Load(ctx, "phone-1")
	require.True(t, errors.Is(err, errors.NoResults))

	sel := language.Selection{Source: "en-US", Destination: "fr-FR"}
	require.NoError(t, s.Save(ctx, "phone-1", sel))
	require.JSONEq(t, `{"source":"en-US","destination":"fr-FR"}`,
		string(backing.data["springbreak/phone-1/languages"]))

	got, err := s.Load(ctx, "phone-1")
	require.NoError(t, err)
	require.Equal(t, sel, got)

	backing.data[chooser.StateStoreKey("phone-2")] = []byte("{broken")
	_, err = s.Load(ctx, "phone-2")
	require.True(t, errors.Is(err, errors.NoResults))
}

func TestStateStoreFailure(t *testing.T) {
	s := chooser.NewStateStore(&kv{err: stderr.New("not connected")}, nil)
	ctx := context.Background()

	_, err := s.Load(ctx, "phone-1")
	require.True(t, errors.Is(err, errors.ExecutionException))

	err = s.Save(ctx, "phone-1", language.Selection{})
	require.True(t, errors.Is(err, errors.ExecutionException))
}

func TestMemoryStore(t *testing.T) {
	s := chooser.NewMemoryStore()
	ctx := context.Background()

	_, err := s.Load(ctx, "phone-1")
	require.True(t, errors.Is(err, errors.NoResults))

	sel := language.Selection{Source: "en-US", Destination: "ja-JP"}
	require.NoError(t, s.Save(ctx, "phone-1", sel))
	got, err := s.Load(ctx, "phone-1")
	require.NoError(t, err)
	require.Equal(t, sel, got)
}
