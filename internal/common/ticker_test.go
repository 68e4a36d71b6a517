package common

import (
	"testing"
)

func TestParseTicker(t *testing.T) {
	// Ensure default exchange is ASX for these tests
	originalDefault := DefaultExchange
	DefaultExchange = "ASX"
	defer func() { DefaultExchange = originalDefault }()

	tests := []struct {
		input        string
		wantExchange string
		wantCode     string
		wantString   string
		wantEODHD    string
	}{
		// Exchange-qualified format with colon separator
		{"ASX:BHP", "ASX", "BHP", "ASX:BHP", "BHP.AU"},
		{"NYSE:AAPL", "NYSE", "AAPL", "NYSE:AAPL", "AAPL.US"},
		{"NASDAQ:MSFT", "NASDAQ", "MSFT", "NASDAQ:MSFT", "MSFT.US"},

		// Exchange-qualified format with dot separator (EXCHANGE.CODE)
		{"ASX.BHP", "ASX", "BHP", "ASX:BHP", "BHP.AU"},
		{"NYSE.AAPL", "NYSE", "AAPL", "NYSE:AAPL", "AAPL.US"},

		// Bare code (no exchange - defaults to ASX)
		{"BHP", "ASX", "BHP", "ASX:BHP", "BHP.AU"},
		{"CBA", "ASX", "CBA", "ASX:CBA", "CBA.AU"},

		// Case normalization
		{"asx:bhp", "ASX", "BHP", "ASX:BHP", "BHP.AU"},
		{"asx.bhp", "ASX", "BHP", "ASX:BHP", "BHP.AU"},
		{"bhp", "ASX", "BHP", "ASX:BHP", "BHP.AU"},

		// Whitespace handling
		{"  ASX:BHP  ", "ASX", "BHP", "ASX:BHP", "BHP.AU"},
		{"  BHP  ", "ASX", "BHP", "ASX:BHP", "BHP.AU"},

		// Empty input
		{"", "", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseTicker(tt.input)

			if result.Exchange != tt.wantExchange {
				t.Errorf("Exchange = %q, want %q", result.Exchange, tt.wantExchange)
			}
			if result.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", result.Code, tt.wantCode)
			}
			if result.String() != tt.wantString {
				t.Errorf("String() = %q, want %q", result.String(), tt.wantString)
			}
			if result.EODHDSymbol() != tt.wantEODHD {
				t.Errorf("EODHDSymbol() = %q, want %q", result.EODHDSymbol(), tt.wantEODHD)
			}
		})
	}
}

func TestTicker_TaskKey(t *testing.T) {
	originalDefault := DefaultExchange
	DefaultExchange = "ASX"
	defer func() { DefaultExchange = originalDefault }()

	tests := []struct {
		ticker     string
		wantResult string
	}{
		{"ASX:BHP", "asx:BHP"},
		{"BHP", "asx:BHP"},
		{"NYSE:AAPL", "nyse:AAPL"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			result := ParseTicker(tt.ticker).TaskKey()
			if result != tt.wantResult {
				t.Errorf("TaskKey() = %q, want %q", result, tt.wantResult)
			}
		})
	}
}

func TestParseTickers(t *testing.T) {
	originalDefault := DefaultExchange
	DefaultExchange = "ASX"
	defer func() { DefaultExchange = originalDefault }()

	input := []string{"BHP", "ASX:CBA", "", "nyse:aapl"}
	result := ParseTickers(input)

	if len(result) != 3 {
		t.Fatalf("ParseTickers returned %d tickers, want 3", len(result))
	}
	if result[0].String() != "ASX:BHP" {
		t.Errorf("result[0] = %q, want ASX:BHP", result[0].String())
	}
	if result[2].String() != "NYSE:AAPL" {
		t.Errorf("result[2] = %q, want NYSE:AAPL", result[2].String())
	}
}
