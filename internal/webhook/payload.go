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

// Package webhook accepts pushed transfer notifications from chain monitoring
// providers and feeds them to the reconciler.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrMalformedPayload = errors.New("malformed webhook payload")

// Payload is one of BlockCypherPayload, AlchemyPayload, GenericPayload or UnknownPayload.
type Payload interface {
	provider() string
}

// BlockCypherPayload is a BlockCypher address event. Total is in satoshis.
type BlockCypherPayload struct {
	Event         string `json:"event"`
	Address       string `json:"address"`
	Hash          string `json:"hash"`
	Total         int64  `json:"total"`
	Confirmations int    `json:"confirmations"`
	Confirmed     string `json:"confirmed"`
}

// AlchemyActivity values are already in whole units.
type AlchemyActivity struct {
	Hash        string          `json:"hash"`
	FromAddress string          `json:"fromAddress"`
	ToAddress   string          `json:"toAddress"`
	Value       decimal.Decimal `json:"value"`
	Asset       string          `json:"asset"`
	BlockNum    string          `json:"blockNum"`
}

// AlchemyPayload is an Alchemy address-activity notification. Activities may sit
// at the top level or under "event".
type AlchemyPayload struct {
	WebhookId string            `json:"webhookId"`
	Activity  []AlchemyActivity `json:"activity"`
}

// GenericPayload is the provider-neutral shape. Amount may be a JSON number or string.
type GenericPayload struct {
	TxHash        string          `json:"txHash"`
	ToAddress     string          `json:"toAddress"`
	FromAddress   string          `json:"fromAddress"`
	Amount        decimal.Decimal `json:"amount"`
	Confirmations int             `json:"confirmations"`
	CryptoType    string          `json:"cryptoType"`
	Timestamp     json.Number     `json:"timestamp"`
}

type UnknownPayload struct {
	Raw json.RawMessage
}

func (BlockCypherPayload) provider() string { return "blockcypher" }
func (AlchemyPayload) provider() string     { return "alchemy" }
func (GenericPayload) provider() string     { return "generic" }
func (UnknownPayload) provider() string     { return "unknown" }

// Provider names the variant for logs and metrics.
func Provider(p Payload) string {
	if p == nil {
		return "unknown"
	}
	return p.provider()
}

// envelope holds only the fields used to pick a variant.
type envelope struct {
	Event     json.RawMessage   `json:"event"`
	Address   string            `json:"address"`
	Hash      string            `json:"hash"`
	Activity  []json.RawMessage `json:"activity"`
	TxHash    string            `json:"txHash"`
	ToAddress string            `json:"toAddress"`
	Amount    json.RawMessage   `json:"amount"`
}

// Parse detects the provider shape of body. Variants are probed in order:
// BlockCypher, Alchemy, generic. Anything else is ErrMalformedPayload.
func Parse(body []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return UnknownPayload{Raw: body}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	var eventName string
	eventIsString := json.Unmarshal(env.Event, &eventName) == nil && eventName != ""

	switch {
	case eventIsString && env.Address != "" && env.Hash != "":
		var p BlockCypherPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return UnknownPayload{Raw: body}, fmt.Errorf("%w: blockcypher: %w", ErrMalformedPayload, err)
		}
		return p, nil

	case len(env.Activity) > 0:
		var p AlchemyPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return UnknownPayload{Raw: body}, fmt.Errorf("%w: alchemy: %w", ErrMalformedPayload, err)
		}
		return p, nil

	case len(env.Event) > 0 && !eventIsString:
		var nested struct {
			WebhookId string `json:"webhookId"`
			Event     struct {
				Activity []AlchemyActivity `json:"activity"`
			} `json:"event"`
		}
		if err := json.Unmarshal(body, &nested); err == nil && len(nested.Event.Activity) > 0 {
			return AlchemyPayload{WebhookId: nested.WebhookId, Activity: nested.Event.Activity}, nil
		}

	case env.TxHash != "" && env.ToAddress != "" && hasAmount(env.Amount):
		var p GenericPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return UnknownPayload{Raw: body}, fmt.Errorf("%w: generic: %w", ErrMalformedPayload, err)
		}
		return p, nil
	}

	return UnknownPayload{Raw: body}, fmt.Errorf("%w: unrecognized shape", ErrMalformedPayload)
}

func hasAmount(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", "0", `""`, `"0"`:
		return false
	}
	return true
}
