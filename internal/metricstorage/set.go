// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metricstorage

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/packetd/probed/internal/labels"
)

// Model 决定 ConstMetric 的输出语义
type Model uint8

const (
	ModelCounter Model = iota
	ModelGauge
)

// ConstMetric 是一次性的指标观测值 连同它当次携带的标签
//
// 标签集合由脚本的 OUTPUT_SUCCESS/OUTPUT_ERROR 渲染得到 每次探测都可能不同
type ConstMetric struct {
	Model  Model
	Name   string
	Labels labels.Labels
	Value  float64
}

func NewCounterConstMetric(name string, value float64, lbs labels.Labels) ConstMetric {
	return ConstMetric{Model: ModelCounter, Name: name, Value: value, Labels: lbs}
}

func NewGaugeConstMetric(name string, value float64, lbs labels.Labels) ConstMetric {
	return ConstMetric{Model: ModelGauge, Name: name, Value: value, Labels: lbs}
}

// Set 持有一组按名称区分的 Counter/Gauge 每个指标内部再按标签哈希区分序列
type Set struct {
	mut      sync.RWMutex
	expired  time.Duration
	counters map[string]*Counter
	gauges   map[string]*Gauge
}

func newSet(expired time.Duration) *Set {
	return &Set{
		expired:  expired,
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
	}
}

func (s *Set) GetOrCreateCounter(name string) *Counter {
	s.mut.RLock()
	inst, ok := s.counters[name]
	s.mut.RUnlock()
	if ok {
		return inst
	}

	s.mut.Lock()
	defer s.mut.Unlock()
	if inst, ok = s.counters[name]; ok {
		return inst
	}
	s.counters[name] = NewCounter(name, s.expired)
	return s.counters[name]
}

func (s *Set) GetOrCreateGauge(name string) *Gauge {
	s.mut.RLock()
	inst, ok := s.gauges[name]
	s.mut.RUnlock()
	if ok {
		return inst
	}

	s.mut.Lock()
	defer s.mut.Unlock()
	if inst, ok = s.gauges[name]; ok {
		return inst
	}
	s.gauges[name] = NewGauge(name, s.expired)
	return s.gauges[name]
}

func (s *Set) WritePrometheus(w io.Writer) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	for _, inst := range s.counters {
		inst.WritePrometheus(w)
	}
	for _, inst := range s.gauges {
		inst.WritePrometheus(w)
	}
}

func (s *Set) RemoveExpired() {
	s.mut.RLock()
	defer s.mut.RUnlock()

	for _, inst := range s.counters {
		inst.RemoveExpired()
	}
	for _, inst := range s.gauges {
		inst.RemoveExpired()
	}
}

func writePrometheus(w io.Writer, metrics ...ConstMetric) {
	for i := 0; i < len(metrics); i++ {
		metric := metrics[i]
		w.Write([]byte(metric.Name))
		w.Write([]byte(`{`))

		var n int
		for _, label := range metric.Labels {
			if n > 0 {
				w.Write([]byte(`,`))
			}
			n++
			w.Write([]byte(label.Name))
			w.Write([]byte(`="`))
			w.Write([]byte(label.Value))
			w.Write([]byte(`"`))
		}

		w.Write([]byte("} "))
		w.Write([]byte(fmt.Sprintf("%f", metric.Value)))
		w.Write([]byte("\n"))
	}
}
