// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package binidx

import (
	"fmt"

	farm "github.com/dgryski/go-farm"

	"github.com/bpowers/binidx/internal/datafile"
)

// Fingerprint returns a 64-bit farmhash over both files of the shard at
// prefix.  Equal shards always have equal fingerprints; different shards
// almost never do.  The shard isn't validated.
func Fingerprint(prefix string) (uint64, error) {
	if err := checkPair(prefix); err != nil {
		return 0, err
	}
	idx, err := datafile.NewMmapReader(IndexPath(prefix), datafile.Sequential)
	if err != nil {
		return 0, fmt.Errorf("datafile.NewMmapReader: %w", err)
	}
	defer func() {
		_ = idx.Close()
	}()
	data, err := datafile.NewMmapReader(DataPath(prefix), datafile.Sequential)
	if err != nil {
		return 0, fmt.Errorf("datafile.NewMmapReader: %w", err)
	}
	defer func() {
		_ = data.Close()
	}()

	seed := farm.Fingerprint64(idx.Data())
	return farm.Hash64WithSeed(data.Data(), seed), nil
}
