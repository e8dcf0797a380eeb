// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import "fmt"

// GasMeter enforces the work ceiling of one batch.
// A zero limit disables metering.
type GasMeter struct {
	limit uint64
	used  uint64
}

// NewGasMeter creates a meter with the given ceiling
func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{limit: limit}
}

// Consume charges amount, failing once the ceiling is crossed
func (m *GasMeter) Consume(amount uint64, what string) error {
	if m == nil {
		return nil
	}
	used := m.used + amount
	if used < m.used || (m.limit != 0 && used > m.limit) {
		err := fmt.Errorf("%w: %s needs %d, %d of %d used", ErrOutOfGas, what, amount, m.used, m.limit)
		m.used = m.limit
		return err
	}
	m.used = used
	return nil
}

// Used returns the gas consumed so far
func (m *GasMeter) Used() uint64 {
	if m == nil {
		return 0
	}
	return m.used
}

// Remaining returns the gas left under the ceiling
func (m *GasMeter) Remaining() uint64 {
	if m == nil || m.limit == 0 {
		return 0
	}
	return m.limit - m.used
}
