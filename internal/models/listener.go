/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import "time"

// PairResult summarizes one (address, asset) sweep
type PairResult struct {
	Address   string          `json:"address"`
	Asset     Asset           `json:"asset"`
	Success   bool            `json:"success"`
	Skipped   bool            `json:"skipped,omitempty"`
	Error     string          `json:"error,omitempty"`
	Transfers int             `json:"transfers"`
	Outcomes  map[Outcome]int `json:"outcomes,omitempty"`
}

// SweepReport aggregates one scheduler tick
type SweepReport struct {
	StartedAt time.Time    `json:"started_at"`
	Duration  string       `json:"duration"`
	Pairs     []PairResult `json:"pairs"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
}

func (r *SweepReport) Add(pr PairResult) {
	r.Pairs = append(r.Pairs, pr)
	switch {
	case pr.Skipped:
		r.Skipped++
	case pr.Success:
		r.Succeeded++
	default:
		r.Failed++
	}
}
