/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package ttl

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	defaultCleanUpPeriod = 10 * time.Minute
)

const labelSep = "\xff"

// GaugeVec drops label sets that have not been written for longer than ttl.
type GaugeVec struct {
	ttl           time.Duration
	labelValueMap map[string]time.Time
	mu            sync.Mutex
	*prometheus.GaugeVec
}

type GaugeWithTTL struct {
	labelValue []string
	vec        *GaugeVec
	gauge      prometheus.Gauge
}

func NewGaugeVecWithTTL(opts prometheus.GaugeOpts, labelNames []string, ttl time.Duration) *GaugeVec {
	gaugeVec := prometheus.NewGaugeVec(opts, labelNames)
	res := &GaugeVec{
		ttl:           ttl,
		GaugeVec:      gaugeVec,
		labelValueMap: make(map[string]time.Time),
	}
	go res.cleanUpExpired()
	return res
}

func (gv *GaugeVec) cleanUpExpired() {
	ticker := time.NewTicker(defaultCleanUpPeriod)
	defer ticker.Stop()
	for now := range ticker.C {
		gv.expire(now)
	}
}

// expire deletes every label set whose deadline is before now.
func (gv *GaugeVec) expire(now time.Time) {
	gv.mu.Lock()
	defer gv.mu.Unlock()
	for k, deadline := range gv.labelValueMap {
		if now.After(deadline) {
			gv.DeleteLabelValues(strings.Split(k, labelSep)...)
			delete(gv.labelValueMap, k)
		}
	}
}

func (gv *GaugeVec) WithLabelValues(val ...string) *GaugeWithTTL {
	gauge := gv.GaugeVec.WithLabelValues(val...)
	return &GaugeWithTTL{
		vec:        gv,
		labelValue: val,
		gauge:      gauge,
	}
}

func (gv *GaugeVec) tracked() int {
	gv.mu.Lock()
	defer gv.mu.Unlock()
	return len(gv.labelValueMap)
}

func (gwt *GaugeWithTTL) Set(val float64) {
	gwt.vec.mu.Lock()
	gwt.vec.labelValueMap[strings.Join(gwt.labelValue, labelSep)] = time.Now().Add(gwt.vec.ttl)
	gwt.vec.mu.Unlock()
	gwt.gauge.Set(val)
}

// SetToCurrentTime sets the gauge to the current unix time and renews its ttl.
func (gwt *GaugeWithTTL) SetToCurrentTime() {
	gwt.Set(float64(time.Now().UnixNano()) / 1e9)
}
