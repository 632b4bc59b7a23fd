package memstore

import (
	"testing"

	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/testkit"
)

func TestMemstore_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store {
		return New()
	})
}
