/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package ttl

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewGaugeVecWithTTL(t *testing.T) {
	g := NewGaugeVecWithTTL(prometheus.GaugeOpts{
		Name: "omnifs_test_client_last_seen",
		Help: "omnifs_test_client_last_seen",
	},
		[]string{"client", "transport"},
		3*time.Second,
	)
	g.WithLabelValues("10.0.0.1", "line").Set(10)
	g.WithLabelValues("10.0.0.2", "http").SetToCurrentTime()
	assert.Equal(t, 2, testutil.CollectAndCount(g))
	assert.Equal(t, 2, g.tracked())

	g.expire(time.Now())
	assert.Equal(t, 2, g.tracked())

	g.expire(time.Now().Add(4 * time.Second))
	assert.Equal(t, 0, g.tracked())
	assert.Equal(t, 0, testutil.CollectAndCount(g))

	g.WithLabelValues("10.0.0.1", "line").Set(1)
	assert.Equal(t, 1, testutil.CollectAndCount(g))
	assert.Equal(t, float64(1), testutil.ToFloat64(g.GaugeVec.WithLabelValues("10.0.0.1", "line")))
}
