// Package fuzz exposes entry points for fuzzing the parser.
package fuzz

import (
	"github.com/rupertlssmith/lojix-sub004/parser"
	"github.com/rupertlssmith/lojix-sub004/symbol"
)

func Fuzz(data []byte) int {
	p := parser.New(symbol.NewTable())
	_, err := p.ParseProgram(string(data))
	if err != nil {
		return 0
	}
	return 1
}
