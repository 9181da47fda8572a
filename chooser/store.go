// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package chooser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Azure/iot-operations-sdks/go/services/statestore"
	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/internal/log"
	"github.com/sakura/springbreak/language"
)

type (
	// Store persists each device's language selection. Load reports a
	// NoResults error for devices that never chose one.
	Store interface {
		Load(ctx context.Context, deviceID string) (language.Selection, error)
		Save(ctx context.Context, deviceID string, sel language.Selection) error
	}

	// MemoryStore is a process-local Store.
	MemoryStore struct {
		mu   sync.RWMutex
		sels map[string]language.Selection
	}

	// KeyValue is the subset of the state store client used by StateStore.
	KeyValue interface {
		Get(
			ctx context.Context,
			key string,
			opt ...statestore.GetOption,
		) (*statestore.Response[[]byte], error)
		Set(
			ctx context.Context,
			key string,
			val []byte,
			opt ...statestore.SetOption,
		) (*statestore.Response[bool], error)
	}

	// StateStore keeps selections as JSON in the distributed state store.
	StateStore struct {
		kv  KeyValue
		log log.Logger
	}
)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sels: map[string]language.Selection{}}
}

// Load returns the device's selection.
func (s *MemoryStore) Load(
	_ context.Context,
	deviceID string,
) (language.Selection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sel, ok := s.sels[deviceID]
	if !ok {
		return language.Selection{}, noSelection(deviceID)
	}
	return sel, nil
}

// Save stores the device's selection.
func (s *MemoryStore) Save(
	_ context.Context,
	deviceID string,
	sel language.Selection,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sels[deviceID] = sel
	return nil
}

// NewStateStore creates a store on top of a state store client.
func NewStateStore(kv KeyValue, logger *slog.Logger) *StateStore {
	return &StateStore{kv: kv, log: log.Wrap(logger)}
}

// StateStoreKey returns the key holding a device's selection.
func StateStoreKey(deviceID string) string {
	return fmt.Sprintf("springbreak/%s/languages", deviceID)
}

// Load returns the device's selection.
func (s *StateStore) Load(
	ctx context.Context,
	deviceID string,
) (language.Selection, error) {
	res, err := s.kv.Get(ctx, StateStoreKey(deviceID))
	if err != nil {
		return language.Selection{}, errors.Normalize(err, "state store get")
	}
	if res == nil || len(res.Value) == 0 {
		return language.Selection{}, noSelection(deviceID)
	}

	var sel language.Selection
	if err := json.Unmarshal(res.Value, &sel); err != nil {
		s.log.Warn(ctx, "discarding malformed language selection",
			slog.String("device_id", deviceID),
			slog.String("error", err.Error()),
		)
		return language.Selection{}, noSelection(deviceID)
	}
	return sel, nil
}

// Save stores the device's selection.
func (s *StateStore) Save(
	ctx context.Context,
	deviceID string,
	sel language.Selection,
) error {
	data, err := json.Marshal(sel)
	if err != nil {
		return errors.Invalid("selection", sel, err.Error())
	}
	if _, err := s.kv.Set(ctx, StateStoreKey(deviceID), data); err != nil {
		return errors.Normalize(err, "state store set")
	}
	return nil
}

func noSelection(deviceID string) error {
	return &errors.Error{
		Message:       fmt.Sprintf("no language selection for %q", deviceID),
		Kind:          errors.NoResults,
		PropertyName:  "deviceID",
		PropertyValue: deviceID,
	}
}
