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

package webhook

import (
	"context"
	"errors"
	"fmt"

	"deposit-reconciler-go/internal/metrics"
	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/reconciler"

	"go.uber.org/zap"
)

// TransferReconciler is satisfied by *reconciler.Reconciler.
type TransferReconciler interface {
	Reconcile(ctx context.Context, t models.ExternalTransfer) (*models.ReconcileResult, error)
}

type Ingestor struct {
	reconciler TransferReconciler
	normalizer *Normalizer
	secret     string
	metrics    *metrics.Metrics
}

func NewIngestor(r TransferReconciler, n *Normalizer, secret string, m *metrics.Metrics) *Ingestor {
	return &Ingestor{reconciler: r, normalizer: n, secret: secret, metrics: m}
}

// Ingest verifies, parses and reconciles one webhook delivery. Duplicates are
// successful results; redelivery of the same body is always safe. Invalid
// transfers are skipped, and the delivery is malformed only when nothing in
// it could be reconciled.
func (i *Ingestor) Ingest(ctx context.Context, body []byte, signature string) ([]models.ReconcileResult, error) {
	if err := VerifySignature(body, signature, i.secret); err != nil {
		i.metrics.ObserveWebhook("unauthorized")
		zap.L().Warn("Rejected webhook with invalid signature", zap.Bool("signature_present", signature != ""))
		return nil, err
	}

	payload, err := Parse(body)
	if err != nil {
		i.metrics.ObserveWebhook("malformed")
		return nil, err
	}

	transfers, err := i.normalizer.Normalize(payload)
	if err != nil {
		i.metrics.ObserveWebhook("malformed")
		return nil, err
	}

	zap.L().Info("Webhook received",
		zap.String("provider", Provider(payload)),
		zap.Int("transfers", len(transfers)))

	results := make([]models.ReconcileResult, 0, len(transfers))
	var invalid error
	for _, t := range transfers {
		result, err := i.reconciler.Reconcile(ctx, t)
		if errors.Is(err, reconciler.ErrInvalidTransfer) {
			// One bad entry must not keep the rest of the delivery from being credited.
			zap.L().Warn("Skipping invalid webhook transfer",
				zap.String("tx_hash", t.TxHash),
				zap.String("asset", t.Asset.String()),
				zap.Error(err))
			invalid = err
			continue
		}
		if err != nil {
			i.metrics.ObserveWebhook("error")
			zap.L().Error("Failed to reconcile webhook transfer",
				zap.String("tx_hash", t.TxHash),
				zap.String("asset", t.Asset.String()),
				zap.Error(err))
			return results, err
		}
		results = append(results, *result)
	}

	if invalid != nil && len(results) == 0 {
		i.metrics.ObserveWebhook("malformed")
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, invalid)
	}

	i.metrics.ObserveWebhook("ok")
	return results, nil
}
