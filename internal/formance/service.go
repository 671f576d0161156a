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

// Package formance mirrors confirmed credits into a Formance Stack ledger so
// finance tooling sees the same postings as the local ledger.
package formance

import (
	"context"
	"errors"
	"fmt"

	"deposit-reconciler-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// assetPrecision maps asset symbols to their decimal precision.
var assetPrecision = map[models.Asset]int{
	models.AssetBTC:  8,
	models.AssetETH:  18,
	models.AssetUSDT: 6,
}

// TransactionCreator is the part of the Formance ledger API the mirror uses.
type TransactionCreator interface {
	CreateTransaction(ctx context.Context, request operations.V2CreateTransactionRequest, opts ...operations.Option) (*operations.V2CreateTransactionResponse, error)
}

// Mirror posts one Formance transaction per credited deposit. It satisfies
// the reconciler's Notifier, so a failed post never undoes a local credit.
type Mirror struct {
	ledgerApi TransactionCreator
	ledger    string
}

// NewMirror connects to the stack and creates the ledger if it doesn't already exist.
func NewMirror(ctx context.Context, cfg models.FormanceConfig) (*Mirror, error) {
	if cfg.StackURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("formance config requires StackURL, ClientID, and ClientSecret")
	}
	if cfg.LedgerName == "" {
		cfg.LedgerName = "deposit-reconciler"
	}

	zap.L().Info("Connecting to Formance Stack",
		zap.String("stack_url", cfg.StackURL),
		zap.String("ledger", cfg.LedgerName))

	client := v3.New(
		v3.WithServerURL(cfg.StackURL),
		v3.WithSecurity(shared.Security{
			ClientID:     v3.Pointer(cfg.ClientID),
			ClientSecret: v3.Pointer(cfg.ClientSecret),
		}),
	)

	if err := ensureLedger(ctx, client, cfg.LedgerName); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger exists: %w", err)
	}

	return NewMirrorWithClient(client.Ledger.V2, cfg.LedgerName), nil
}

func NewMirrorWithClient(api TransactionCreator, ledger string) *Mirror {
	return &Mirror{ledgerApi: api, ledger: ledger}
}

func ensureLedger(ctx context.Context, client *v3.Formance, ledger string) error {
	_, err := client.Ledger.V2.CreateLedger(ctx, operations.V2CreateLedgerRequest{
		Ledger: ledger,
		V2CreateLedgerRequest: shared.V2CreateLedgerRequest{
			Metadata: map[string]string{
				"application": "deposit-reconciler",
			},
		},
	})
	if err != nil {
		var apiErr *sdkerrors.V2ErrorResponse
		if errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumLedgerAlreadyExists {
			zap.L().Info("Ledger already exists", zap.String("ledger", ledger))
			return nil
		}
		return err
	}
	zap.L().Info("Ledger created", zap.String("ledger", ledger))
	return nil
}

// formanceAsset returns the Formance UMN notation, e.g. "BTC/8".
func formanceAsset(asset models.Asset) string {
	return fmt.Sprintf("%s/%d", asset, precisionFor(asset))
}

func precisionFor(asset models.Asset) int {
	if p, ok := assetPrecision[asset]; ok {
		return p
	}
	return 6
}

// isConflictError reports a duplicate transaction reference.
func isConflictError(err error) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumConflict
}
