package engine

import (
	"context"
	"sort"

	"github.com/wippyai/component-host/compose"
)

// storeError mirrors the error side of the configuration store
// interface. Lookups against the in-memory table cannot fail, so hosts
// only ever return the success sides.
type storeError struct {
	Message string
}

// configStore serves a composed configuration table as the
// wasi:config store host interface.
type configStore struct {
	values map[string]string
}

func newConfigStore(values map[string]string) *configStore {
	return &configStore{values: values}
}

func (h *configStore) Namespace() string {
	return compose.ConfigInterface
}

// Get returns the value for a key, or none when the key is absent.
func (h *configStore) Get(_ context.Context, key string) (*string, *storeError) {
	v, ok := h.values[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// GetAll returns every key-value pair in key order.
func (h *configStore) GetAll(_ context.Context) ([][2]string, *storeError) {
	keys := make([]string, 0, len(h.values))
	for k := range h.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2]string{k, h.values[k]})
	}
	return out, nil
}
