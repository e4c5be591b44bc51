package binance

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

const codeInvalidSymbol = -1121

type tickerPrice struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type miniTicker struct {
	EventType string          `json:"e"`
	EventTime int64           `json:"E"`
	Symbol    string          `json:"s"`
	Close     decimal.Decimal `json:"c"`
}

type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// decodeMiniTickers accepts a raw ticker array, a single ticker, or either wrapped in a combined-stream envelope.
func decodeMiniTickers(data []byte) ([]miniTicker, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty message")
	}

	if trimmed[0] == '[' {
		var tickers []miniTicker
		if err := json.Unmarshal(trimmed, &tickers); err != nil {
			return nil, fmt.Errorf("decode ticker array: %w", err)
		}
		return filterMiniTickers(tickers), nil
	}

	var envelope streamEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode stream message: %w", err)
	}
	if len(envelope.Data) > 0 {
		return decodeMiniTickers(envelope.Data)
	}

	var ticker miniTicker
	if err := json.Unmarshal(trimmed, &ticker); err != nil {
		return nil, fmt.Errorf("decode ticker: %w", err)
	}
	return filterMiniTickers([]miniTicker{ticker}), nil
}

func filterMiniTickers(tickers []miniTicker) []miniTicker {
	out := tickers[:0]
	for _, ticker := range tickers {
		if ticker.EventType != "24hrMiniTicker" || ticker.Symbol == "" || !ticker.Close.IsPositive() {
			continue
		}
		out = append(out, ticker)
	}
	return out
}
