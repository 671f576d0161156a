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

package matcher

import (
	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/policy"
)

// Matcher selects the pending claim an observed transfer settles.
type Matcher struct {
	policy *policy.Policy
}

func New(p *policy.Policy) *Matcher {
	return &Matcher{policy: p}
}

// FindCandidateClaim returns the newest pending claim for the transfer's asset and
// custody address whose claimed amount is within tolerance, or nil.
func (m *Matcher) FindCandidateClaim(transfer models.ExternalTransfer, claims []models.Deposit) *models.Deposit {
	var best *models.Deposit
	for i := range claims {
		claim := &claims[i]
		if !m.eligible(transfer, claim) {
			continue
		}
		if best == nil || newer(claim, best) {
			best = claim
		}
	}
	return best
}

func (m *Matcher) eligible(transfer models.ExternalTransfer, claim *models.Deposit) bool {
	if !claim.IsPending() || claim.UserId == nil {
		return false
	}
	if claim.Asset != transfer.Asset {
		return false
	}
	if !transfer.Asset.SameAddress(claim.CustodyAddress, transfer.ToAddress) {
		return false
	}
	return m.policy.WithinTolerance(transfer.Amount, claim.ClaimedAmount)
}

// ties on created_at fall back to id so repeated runs pick the same claim
func newer(a, b *models.Deposit) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.Id > b.Id
	}
	return a.CreatedAt.After(b.CreatedAt)
}
